package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kiwilearn/internal/apperrors"
	"kiwilearn/internal/database"
	"kiwilearn/internal/metrics"
	"kiwilearn/internal/models"
	"kiwilearn/internal/repository"
	"kiwilearn/internal/utils"
)

// PetService handles adopting, feeding and ageing virtual pets
type PetService struct {
	db    *database.DB
	users *repository.UserRepository
	pets  *repository.PetRepository
}

// NewPetService creates a new pet service
func NewPetService(db *database.DB) *PetService {
	return &PetService{
		db:    db,
		users: repository.NewUserRepository(db),
		pets:  repository.NewPetRepository(db),
	}
}

// GetPet returns the user's pet, or nil if they have not adopted one
func (s *PetService) GetPet(ctx context.Context, userID string) (*models.Pet, error) {
	return s.pets.GetPetByUserID(ctx, userID)
}

// AdoptPet creates the user's one and only pet
func (s *PetService) AdoptPet(ctx context.Context, userID, name string, petType models.PetType) (*models.Pet, error) {
	petType = models.PetType(strings.ToLower(strings.TrimSpace(string(petType))))
	if !petType.Valid() {
		return nil, ErrInvalidPetType
	}
	name = strings.TrimSpace(name)
	if err := utils.ValidatePetName(name); err != nil {
		if name == "" {
			return nil, ErrInvalidName
		}
		return nil, apperrors.Wrap(apperrors.KindValidation, "Pet name must be 30 characters or fewer", err)
	}

	pet := &models.Pet{
		ID:         uuid.NewString(),
		UserID:     userID,
		PetType:    petType,
		Name:       name,
		Level:      1,
		Experience: 0,
		Happiness:  models.InitialHappiness,
		Hunger:     models.InitialHunger,
	}

	err := s.db.WithTransaction(ctx, func(q database.Querier) error {
		pets := s.pets.WithTx(q)
		existing, err := pets.GetPetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrPetAlreadyExists
		}
		return pets.CreatePet(ctx, pet)
	})
	if err != nil {
		if s.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrPetAlreadyExists
		}
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("pet_type", string(petType)).Msg("Pet adopted")
	return pet, nil
}

// FeedPet spends points to make the pet happier and less hungry. The debit
// is a conditional update so concurrent feeds cannot overdraw the balance.
func (s *PetService) FeedPet(ctx context.Context, userID string) (*models.Pet, error) {
	var pet *models.Pet
	err := s.db.WithTransaction(ctx, func(q database.Querier) error {
		debited, err := s.users.WithTx(q).DebitPoints(ctx, userID, models.PetFeedCost)
		if err != nil {
			return err
		}
		if !debited {
			return ErrInsufficientPoints
		}

		pets := s.pets.WithTx(q)
		fed, err := pets.Feed(ctx, userID, time.Now())
		if err != nil {
			return err
		}
		if !fed {
			return ErrNoPetFound
		}

		pet, err = pets.GetPetByUserID(ctx, userID)
		return err
	})

	switch {
	case err == nil:
		metrics.RecordPetFeed("ok")
	case errors.Is(err, ErrInsufficientPoints):
		metrics.RecordPetFeed("insufficient_points")
	case errors.Is(err, ErrNoPetFound):
		metrics.RecordPetFeed("no_pet")
	default:
		metrics.RecordPetFeed("error")
	}
	if err != nil {
		return nil, err
	}
	return pet, nil
}

// DecayAll makes every pet a little hungrier. Starving pets get sadder.
func (s *PetService) DecayAll(ctx context.Context) (int64, error) {
	n, err := s.pets.DecayAll(ctx)
	if err != nil {
		return 0, err
	}
	log.Debug().Int64("pets", n).Msg("Pet hunger decayed")
	return n, nil
}
