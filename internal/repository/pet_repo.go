package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
)

const petColumns = `id, user_id, pet_type, name, level, experience, happiness, hunger, last_fed, created_at, updated_at`

// PetRepository handles database operations for pets
type PetRepository struct {
	db database.Querier
}

// NewPetRepository creates a new pet repository
func NewPetRepository(db database.Querier) *PetRepository {
	return &PetRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PetRepository) WithTx(q database.Querier) *PetRepository {
	return &PetRepository{db: q}
}

// CreatePet inserts a new pet
func (r *PetRepository) CreatePet(ctx context.Context, pet *models.Pet) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO pets (id, user_id, pet_type, name, level, experience, happiness, hunger, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		pet.ID,
		pet.UserID,
		string(pet.PetType),
		pet.Name,
		pet.Level,
		pet.Experience,
		pet.Happiness,
		pet.Hunger,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create pet: %w", err)
	}

	pet.CreatedAt = now
	pet.UpdatedAt = now
	return nil
}

// GetPetByUserID retrieves a user's pet. It returns nil, nil when the user has none.
func (r *PetRepository) GetPetByUserID(ctx context.Context, userID string) (*models.Pet, error) {
	query := "SELECT " + petColumns + " FROM pets WHERE user_id = ?"
	return r.getPet(ctx, query, userID)
}

// GetPetByUserIDForUpdate retrieves a user's pet and locks the row
func (r *PetRepository) GetPetByUserIDForUpdate(ctx context.Context, userID string) (*models.Pet, error) {
	query := "SELECT " + petColumns + " FROM pets WHERE user_id = ?" + r.db.GetDialect().LockClause()
	return r.getPet(ctx, query, userID)
}

func (r *PetRepository) getPet(ctx context.Context, query string, userID string) (*models.Pet, error) {
	pet, err := scanPet(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return pet, nil
}

// Feed raises happiness and lowers hunger within bounds. It reports false
// when the user has no pet.
func (r *PetRepository) Feed(ctx context.Context, userID string, fedAt time.Time) (bool, error) {
	query := `
		UPDATE pets
		SET happiness = CASE WHEN happiness + ? > ? THEN ? ELSE happiness + ? END,
			hunger = CASE WHEN hunger - ? < 0 THEN 0 ELSE hunger - ? END,
			last_fed = ?,
			updated_at = ?
		WHERE user_id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.FeedHappinessGain, models.MaxPetStat, models.MaxPetStat, models.FeedHappinessGain,
		models.FeedHungerRelief, models.FeedHungerRelief,
		fedAt.UTC(),
		time.Now().UTC(),
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to feed pet: %w", err)
	}
	return database.Affected(result)
}

// UpdateExperience stores a pet's experience and level
func (r *PetRepository) UpdateExperience(ctx context.Context, petID string, experience, level int) error {
	query := "UPDATE pets SET experience = ?, level = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, experience, level, time.Now().UTC(), petID); err != nil {
		return fmt.Errorf("failed to update pet experience: %w", err)
	}
	return nil
}

// DecayAll makes every pet hungrier by one step. Pets pushed past the
// starving threshold also lose happiness. Happiness is assigned first because
// MySQL evaluates single-table assignments left to right.
func (r *PetRepository) DecayAll(ctx context.Context) (int64, error) {
	query := `
		UPDATE pets
		SET happiness = CASE
				WHEN hunger + ? > ? THEN CASE WHEN happiness - ? < 0 THEN 0 ELSE happiness - ? END
				ELSE happiness
			END,
			hunger = CASE WHEN hunger + ? > ? THEN ? ELSE hunger + ? END,
			updated_at = ?
		WHERE hunger < ? OR happiness > 0
	`
	result, err := r.db.ExecContext(ctx, query,
		models.HungerDecayStep, models.StarvingThreshold, models.StarvingUnhappiness, models.StarvingUnhappiness,
		models.HungerDecayStep, models.MaxPetStat, models.MaxPetStat, models.HungerDecayStep,
		time.Now().UTC(),
		models.MaxPetStat,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to decay pets: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

func scanPet(row rowScanner) (*models.Pet, error) {
	pet := &models.Pet{}
	var petType string
	var lastFed sql.NullTime

	err := row.Scan(
		&pet.ID,
		&pet.UserID,
		&petType,
		&pet.Name,
		&pet.Level,
		&pet.Experience,
		&pet.Happiness,
		&pet.Hunger,
		&lastFed,
		&pet.CreatedAt,
		&pet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pet.PetType = models.PetType(petType)
	pet.LastFed = timePtr(lastFed)
	return pet, nil
}
