package referral

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxUplineDepth bounds upline traversal. Resolution always goes through id
// lookups, never in-memory pointers, so a corrupted cycle cannot loop forever.
const MaxUplineDepth = 3

// ErrInvalidReferralCode is returned when a registration names an unknown code
var ErrInvalidReferralCode = errors.New("invalid referral code")

// Service maintains the referral forest: each user has at most one parent,
// fixed at registration, plus denormalized downline sets per level.
type Service struct {
	db      *gorm.DB
	genCode func() (string, error)
}

// NewService creates a new referral service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, genCode: utils.GenerateReferralCode}
}

// FindByReferralCode resolves a referral code to its owner
func (s *Service) FindByReferralCode(code string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "referral_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, fmt.Errorf("error looking up referral code: %w", err)
	}
	return &user, nil
}

// referralCodeAttempts bounds collision retries when minting a code. Hitting
// the bound means the code space is effectively exhausted.
const referralCodeAttempts = 10

// GenerateUniqueReferralCode generates a referral code that no existing user
// holds. Retries on the (unlikely) collision, up to a fixed bound.
func (s *Service) GenerateUniqueReferralCode() (string, error) {
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := s.genCode()
		if err != nil {
			return "", err
		}

		var count int64
		if err := s.db.Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("error checking referral code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unique referral code after %d attempts", referralCodeAttempts)
}

// ResolveUpline walks parent pointers from userID and returns up to maxDepth
// ancestor ids, nearest first. A missing ancestor ends the walk early; a
// short or broken chain is not an error.
func (s *Service) ResolveUpline(userID uuid.UUID, maxDepth int) ([]uuid.UUID, error) {
	if maxDepth <= 0 || maxDepth > MaxUplineDepth {
		maxDepth = MaxUplineDepth
	}

	upline := make([]uuid.UUID, 0, maxDepth)
	currentID := userID

	for len(upline) < maxDepth {
		var current models.User
		err := s.db.Select("id", "referred_by_id").First(&current, "id = ?", currentID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, fmt.Errorf("error resolving upline: %w", err)
		}

		if current.ReferredByID == nil {
			break
		}

		upline = append(upline, *current.ReferredByID)
		currentID = *current.ReferredByID
	}

	return upline, nil
}

// RegisterDescendant records descendantID in ancestorID's downline set at the
// given level. The conflict-ignoring insert gives set semantics: re-running
// or racing the same registration is a no-op.
func (s *Service) RegisterDescendant(tx *gorm.DB, ancestorID uuid.UUID, level int, descendantID uuid.UUID) error {
	if tx == nil {
		tx = s.db
	}
	edge := models.ReferralLevel{
		AncestorID:   ancestorID,
		Level:        level,
		DescendantID: descendantID,
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error
	if err != nil {
		return fmt.Errorf("error registering descendant: %w", err)
	}
	return nil
}

// Downline returns the users in ancestorID's downline set at one level
func (s *Service) Downline(ancestorID uuid.UUID, level int) ([]models.User, error) {
	var users []models.User
	err := s.db.
		Joins("JOIN referral_levels rl ON rl.descendant_id = users.id").
		Where("rl.ancestor_id = ? AND rl.level = ?", ancestorID, level).
		Order("rl.created_at").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching downline: %w", err)
	}
	return users, nil
}

// Tree bundles the three downline levels for the referral tree endpoint
type Tree struct {
	Level1 []models.User `json:"level1"`
	Level2 []models.User `json:"level2"`
	Level3 []models.User `json:"level3"`
}

// DownlineTree returns the full three-level downline of a user
func (s *Service) DownlineTree(ancestorID uuid.UUID) (*Tree, error) {
	tree := &Tree{}
	levels := []*[]models.User{&tree.Level1, &tree.Level2, &tree.Level3}
	for i, dest := range levels {
		users, err := s.Downline(ancestorID, i+1)
		if err != nil {
			return nil, err
		}
		*dest = users
	}
	return tree, nil
}
