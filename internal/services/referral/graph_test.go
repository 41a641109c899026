package referral

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/database"
	"github.com/gradskill/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, referredBy *uuid.UUID) *models.User {
	t.Helper()
	unique := strings.ReplaceAll(uuid.NewString(), "-", "")
	user := &models.User{
		Name:         name,
		Email:        name + "-" + unique[:8] + "@example.com",
		MobileNumber: "+91" + unique[:10],
		PasswordHash: "x",
		ReferralCode: "GS" + strings.ToUpper(unique[:6]),
		ReferredByID: referredBy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createChain builds a referral chain root -> ... -> leaf and returns the
// users from root to leaf.
func createChain(t *testing.T, db *gorm.DB, names ...string) []*models.User {
	t.Helper()
	users := make([]*models.User, len(names))
	for i, name := range names {
		var parent *uuid.UUID
		if i > 0 {
			parent = &users[i-1].ID
		}
		users[i] = createUser(t, db, name, parent)
	}
	return users
}

func TestFindByReferralCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	user := createUser(t, db, "alice", nil)

	found, err := svc.FindByReferralCode(user.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.FindByReferralCode("GSNOPE1")
	assert.ErrorIs(t, err, ErrInvalidReferralCode)
}

func TestResolveUplineBounded(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	chain := createChain(t, db, "a", "b", "c", "d", "e")
	leaf := chain[len(chain)-1]

	upline, err := svc.ResolveUpline(leaf.ID, MaxUplineDepth)
	require.NoError(t, err)

	// Nearest first, capped at three levels even though four ancestors exist.
	require.Len(t, upline, 3)
	assert.Equal(t, chain[3].ID, upline[0])
	assert.Equal(t, chain[2].ID, upline[1])
	assert.Equal(t, chain[1].ID, upline[2])
}

func TestResolveUplineShortChain(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	chain := createChain(t, db, "a", "b")

	upline, err := svc.ResolveUpline(chain[1].ID, MaxUplineDepth)
	require.NoError(t, err)
	require.Len(t, upline, 1)
	assert.Equal(t, chain[0].ID, upline[0])

	upline, err = svc.ResolveUpline(chain[0].ID, MaxUplineDepth)
	require.NoError(t, err)
	assert.Empty(t, upline)
}

func TestRegisterDescendantSetSemantics(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	ancestor := createUser(t, db, "ancestor", nil)
	descendant := createUser(t, db, "descendant", &ancestor.ID)

	require.NoError(t, svc.RegisterDescendant(nil, ancestor.ID, 1, descendant.ID))
	require.NoError(t, svc.RegisterDescendant(nil, ancestor.ID, 1, descendant.ID))

	var count int64
	require.NoError(t, db.Model(&models.ReferralLevel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDownlineTree(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	chain := createChain(t, db, "root", "mid", "leaf")
	root := chain[0]

	require.NoError(t, svc.RegisterDescendant(nil, root.ID, 1, chain[1].ID))
	require.NoError(t, svc.RegisterDescendant(nil, root.ID, 2, chain[2].ID))

	tree, err := svc.DownlineTree(root.ID)
	require.NoError(t, err)

	require.Len(t, tree.Level1, 1)
	assert.Equal(t, chain[1].ID, tree.Level1[0].ID)
	require.Len(t, tree.Level2, 1)
	assert.Equal(t, chain[2].ID, tree.Level2[0].ID)
	assert.Empty(t, tree.Level3)
}

func TestGenerateUniqueReferralCode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	existing := createUser(t, db, "holder", nil)

	code, err := svc.GenerateUniqueReferralCode()
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Equal(t, "GS", code[:2])
	assert.NotEqual(t, existing.ReferralCode, code)
}

func TestGenerateUniqueReferralCodeBoundedRetries(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	svc.genCode = func() (string, error) { return "GSSTUCK1", nil }

	taken := createUser(t, db, "holder", nil)
	require.NoError(t, db.Model(taken).Update("referral_code", "GSSTUCK1").Error)

	// Every attempt collides, so the generator must give up, not loop.
	_, err := svc.GenerateUniqueReferralCode()
	assert.Error(t, err)
}
