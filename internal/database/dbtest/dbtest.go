// Package dbtest opens migrated in-memory databases for package tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/database"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// Open returns a fresh in-memory SQLite database with the production schema.
// The pool is pinned to a single connection so every query sees the same
// in-memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.Config())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// CreateUser inserts an active user
func CreateUser(t testing.TB, db *gorm.DB, id uint64, username string, admin bool) *models.User {
	t.Helper()
	user := &models.User{ID: id, Username: username, Admin: admin, Active: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateGroup inserts a group with the given members
func CreateGroup(t testing.TB, db *gorm.DB, id uint64, name string, level int, memberIDs ...uint64) *models.Group {
	t.Helper()
	group := &models.Group{ID: id, Name: name, AssignableLevel: level}
	require.NoError(t, db.Create(group).Error)
	for _, userID := range memberIDs {
		require.NoError(t, db.Create(&models.GroupUser{GroupID: id, UserID: userID}).Error)
	}
	return group
}

// CreateTopic inserts a regular topic with its first post
func CreateTopic(t testing.TB, db *gorm.DB, id uint64, title string) *models.Topic {
	t.Helper()
	topic := &models.Topic{ID: id, Title: title, Archetype: models.ArchetypeRegular}
	require.NoError(t, db.Create(topic).Error)
	CreatePost(t, db, id*1000+1, id, 1, "First post of "+title)
	return topic
}

// CreatePost inserts a regular post
func CreatePost(t testing.TB, db *gorm.DB, id, topicID uint64, postNumber int, raw string) *models.Post {
	t.Helper()
	post := &models.Post{ID: id, TopicID: topicID, PostNumber: postNumber, PostType: models.PostTypeRegular, Raw: raw}
	require.NoError(t, db.Create(post).Error)
	return post
}

// DestroyPost soft deletes a post
func DestroyPost(t testing.TB, db *gorm.DB, id uint64) {
	t.Helper()
	require.NoError(t, db.Delete(&models.Post{}, "id = ?", id).Error)
}

// RecoverPost restores a soft deleted post
func RecoverPost(t testing.TB, db *gorm.DB, id uint64) {
	t.Helper()
	require.NoError(t, db.Unscoped().Model(&models.Post{}).Where("id = ?", id).Update("deleted_at", nil).Error)
}

// MovePost places a post in another topic at the given position
func MovePost(t testing.TB, db *gorm.DB, id, topicID uint64, postNumber int) {
	t.Helper()
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", id).
		Updates(map[string]interface{}{"topic_id": topicID, "post_number": postNumber}).Error)
}
