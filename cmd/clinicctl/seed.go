package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const demoPassword = "Demo1234"

var specialties = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Pediatrics",
	"Neurology",
	"Orthopedics",
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed permissions, system roles and the admin account",
		Long: "Seed is idempotent. With --demo it also creates fake doctors with weekday " +
			"availability and fake patients, all with password " + demoPassword + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			demo, _ := cmd.Flags().GetBool("demo")
			doctors, _ := cmd.Flags().GetInt("doctors")
			patients, _ := cmd.Flags().GetInt("patients")

			cfg, pool, err := setup(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := cmd.Context()
			s := &seeder{pool: pool, hasher: security.NewBcryptHasher(security.DefaultCost)}
			if err := s.catalogue(ctx); err != nil {
				return fmt.Errorf("seed rbac: %w", err)
			}
			if err := s.admin(ctx, cfg.Seed); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if !demo {
				return nil
			}

			gofakeit.Seed(time.Now().UnixNano())
			if err := s.doctors(ctx, doctors); err != nil {
				return fmt.Errorf("seed doctors: %w", err)
			}
			if err := s.patients(ctx, patients); err != nil {
				return fmt.Errorf("seed patients: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("demo", false, "also create fake doctors and patients")
	cmd.Flags().Int("doctors", 10, "number of demo doctors")
	cmd.Flags().Int("patients", 50, "number of demo patients")
	return cmd
}

type seeder struct {
	pool   *pgxpool.Pool
	hasher security.PasswordHasher
}

func (s *seeder) catalogue(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range model.PermissionCatalog {
		_, err := tx.Exec(ctx, `
			INSERT INTO permissions (id, name, description, category)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, uuid.New(), p.Name, p.Description, p.Category)
		if err != nil {
			return err
		}
	}

	for _, role := range model.SystemRoles {
		_, err := tx.Exec(ctx, `
			INSERT INTO roles (id, name, description, is_system_role)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (name) DO UPDATE SET is_system_role = TRUE
		`, uuid.New(), role, role+" system role")
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p
			WHERE r.name = $1 AND p.name = ANY($2)
			ON CONFLICT DO NOTHING
		`, role, rbac.DefaultGrants[role])
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Info().
		Int("permissions", len(model.PermissionCatalog)).
		Int("roles", len(model.SystemRoles)).
		Msg("RBAC catalogue seeded")
	return nil
}

func (s *seeder) admin(ctx context.Context, cfg config.SeedConfig) error {
	if cfg.AdminPassword == "" {
		log.Warn().Msg("No admin password configured (CLINIC_ADMIN_PASSWORD), skipping admin")
		return nil
	}
	if err := security.ValidateStrength(cfg.AdminPassword); err != nil {
		return err
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		cfg.AdminEmail).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		log.Info().Str("email", cfg.AdminEmail).Msg("Admin already present")
		return nil
	}

	hash, err := s.hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	id, err := insertUser(ctx, tx, cfg.AdminEmail, cfg.AdminUsername, "Clinic Administrator", hash, nil)
	if err != nil {
		return err
	}
	if err := grantRole(ctx, tx, id, model.RoleSuperAdmin); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Info().Str("email", cfg.AdminEmail).Str("user_id", id.String()).Msg("Admin created")
	return nil
}

func (s *seeder) doctors(ctx context.Context, count int) error {
	hash, err := s.hasher.Hash(demoPassword)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	specIDs := make([]uuid.UUID, 0, len(specialties))
	for _, name := range specialties {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO specializations (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.New(), name).Scan(&id)
		if err != nil {
			return err
		}
		specIDs = append(specIDs, id)
	}

	for i := 0; i < count; i++ {
		name := "Dr. " + gofakeit.Name()
		userID, err := insertUser(ctx, tx, demoEmail("doctor"), demoUsername("dr"), name, hash, nil)
		if err != nil {
			return err
		}
		if err := grantRole(ctx, tx, userID, model.RoleDoctor); err != nil {
			return err
		}

		doctorID := uuid.New()
		_, err = tx.Exec(ctx, `
			INSERT INTO doctor_profiles
				(id, user_id, specialization_id, phone_number, years_of_experience, consultation_fee)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, doctorID, userID, specIDs[gofakeit.Number(0, len(specIDs)-1)],
			gofakeit.Phone(), gofakeit.Number(1, 30), float64(gofakeit.Number(4, 20)*10))
		if err != nil {
			return err
		}

		for day := time.Monday; day <= time.Friday; day++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_rules
					(id, doctor_id, day_of_week, start_time, end_time, is_recurring, max_appointments_per_slot)
				VALUES ($1, $2, $3, $4::text::time, $5::text::time, TRUE, $6)
			`, uuid.New(), doctorID, int(day), "09:00", "12:00", gofakeit.Number(1, 2))
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Info().Int("count", count).Msg("Demo doctors seeded")
	return nil
}

func (s *seeder) patients(ctx context.Context, count int) error {
	hash, err := s.hasher.Hash(demoPassword)
	if err != nil {
		return err
	}

	const batchSize = 100
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)
		if err := s.patientBatch(ctx, end-offset, hash); err != nil {
			return err
		}
		log.Info().Msgf("Demo patients seeded: %d/%d", end, count)
	}
	return nil
}

func (s *seeder) patientBatch(ctx context.Context, n int, hash string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < n; i++ {
		name := gofakeit.Name()
		recordID := uuid.New()
		dob := time.Date(gofakeit.Number(1940, 2015), time.Month(gofakeit.Number(1, 12)), gofakeit.Number(1, 28), 0, 0, 0, 0, time.UTC)
		_, err := tx.Exec(ctx, `
			INSERT INTO patient_records (id, full_name, date_of_birth) VALUES ($1, $2, $3)
		`, recordID, name, dob)
		if err != nil {
			return err
		}
		userID, err := insertUser(ctx, tx, demoEmail("patient"), demoUsername("pt"), name, hash, &recordID)
		if err != nil {
			return err
		}
		if err := grantRole(ctx, tx, userID, model.RolePatient); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertUser(ctx context.Context, tx pgx.Tx, email, username, fullName, hash string, recordID *uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, username, full_name, password_hash, email_confirmed, patient_record_id)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
	`, id, strings.ToLower(email), username, fullName, hash, recordID)
	return id, err
}

func grantRole(ctx context.Context, tx pgx.Tx, userID uuid.UUID, role model.RoleName) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING
	`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %s is not seeded", role)
	}
	return nil
}

// Fake names repeat, so a short random suffix keeps emails and usernames unique.
func demoEmail(kind string) string {
	return fmt.Sprintf("%s.%s@demo.clinic.local", kind, uuid.NewString()[:8])
}

func demoUsername(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
}
