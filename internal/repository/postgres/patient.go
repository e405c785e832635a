package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

// CreateWithUser stores a new patient record together with its owning user,
// who is linked to the record and granted the Patient role.
func (r *patientRepository) CreateWithUser(ctx context.Context, record *model.PatientRecord, user *model.User) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO patient_records (id, full_name, date_of_birth, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		record.ID = uuid.New()
		record.CreatedAt = time.Now().UTC()
		record.UpdatedAt = record.CreatedAt

		if _, err := tx.ExecContext(ctx, query,
			record.ID,
			record.FullName,
			record.DateOfBirth,
			record.CreatedAt,
			record.UpdatedAt,
		); err != nil {
			return mapError(err, "create patient record", "patient record")
		}

		user.PatientRecordID = &record.ID
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		if err := assignRolesTx(ctx, tx, user.ID, []string{model.RolePatient}); err != nil {
			return err
		}
		user.Roles = []string{model.RolePatient}
		return nil
	})
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error) {
	query := `
		SELECT id, full_name, date_of_birth, created_at, updated_at
		FROM patient_records
		WHERE id = $1
	`
	var record model.PatientRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, mapError(err, "get patient record", "patient record")
	}
	return &record, nil
}

func (r *patientRepository) Update(ctx context.Context, record *model.PatientRecord) error {
	query := `
		UPDATE patient_records
		SET full_name = $1, date_of_birth = $2, updated_at = $3
		WHERE id = $4
	`
	record.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		record.FullName,
		record.DateOfBirth,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return mapError(err, "update patient record", "patient record")
	}
	return checkAffected(result, "patient record")
}

func (r *patientRepository) AddPrescription(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (id, patient_record_id, medication, dosage, prescribed_by_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.PatientRecordID,
		p.Medication,
		p.Dosage,
		p.PrescribedByUserID,
		p.CreatedAt,
	); err != nil {
		return mapError(err, "create prescription", "prescription")
	}
	return nil
}

func (r *patientRepository) ListPrescriptions(ctx context.Context, patientRecordID uuid.UUID) ([]*model.Prescription, error) {
	query := `
		SELECT id, patient_record_id, medication, dosage, prescribed_by_user_id, created_at
		FROM prescriptions
		WHERE patient_record_id = $1
		ORDER BY created_at DESC
	`
	var prescriptions []*model.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, patientRecordID); err != nil {
		return nil, mapError(err, "list prescriptions", "prescription")
	}
	return prescriptions, nil
}

func (r *patientRepository) AddVital(ctx context.Context, v *model.Vital) error {
	query := `
		INSERT INTO vitals (id, patient_record_id, type, value, notes, recorded_by_user_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	v.ID = uuid.New()
	v.RecordedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.PatientRecordID,
		v.Type,
		v.Value,
		v.Notes,
		v.RecordedByUserID,
		v.RecordedAt,
	); err != nil {
		return mapError(err, "create vital", "vital")
	}
	return nil
}

func (r *patientRepository) ListVitals(ctx context.Context, patientRecordID uuid.UUID) ([]*model.Vital, error) {
	query := `
		SELECT id, patient_record_id, type, value, notes, recorded_by_user_id, recorded_at
		FROM vitals
		WHERE patient_record_id = $1
		ORDER BY recorded_at DESC
	`
	var vitals []*model.Vital
	if err := r.db.SelectContext(ctx, &vitals, query, patientRecordID); err != nil {
		return nil, mapError(err, "list vitals", "vital")
	}
	return vitals, nil
}

func (r *patientRepository) AddTestResult(ctx context.Context, t *model.TestResult) error {
	query := `
		INSERT INTO test_results (id, patient_record_id, title, result, recorded_by_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.PatientRecordID,
		t.Title,
		t.Result,
		t.RecordedByUserID,
		t.CreatedAt,
	); err != nil {
		return mapError(err, "create test result", "test result")
	}
	return nil
}

func (r *patientRepository) ListTestResults(ctx context.Context, patientRecordID uuid.UUID) ([]*model.TestResult, error) {
	query := `
		SELECT id, patient_record_id, title, result, recorded_by_user_id, created_at
		FROM test_results
		WHERE patient_record_id = $1
		ORDER BY created_at DESC
	`
	results := []*model.TestResult{}
	if err := r.db.SelectContext(ctx, &results, query, patientRecordID); err != nil {
		return nil, mapError(err, "list test results", "test result")
	}
	return results, nil
}
