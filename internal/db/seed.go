package db

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matchmaking/internal/conversation"
	"github.com/oggyb/muzz-matchmaking/internal/logger"
)

// seedCenter is the point demo profiles are scattered around (Paris).
var seedCenter = struct{ Lat, Lng float64 }{48.8566, 2.3522}

var (
	seedInstruments = []string{"guitar", "bass", "drums", "piano", "violin", "vocals", "saxophone"}
	seedStyles      = []string{"rock", "jazz", "blues", "metal", "pop", "folk", "electro"}
)

// SeedTestData resets the database and populates it with demo users,
// profiles and swipes.
//
// Behavior:
//  1. Clears messages, matches, decisions, profiles and users.
//  2. Creates 20 users with hashed passwords; the first two are premium.
//  3. Gives each a profile within ~30km of seedCenter (every 7th has no location).
//  4. Generates swipes with ~70% likes; every 3rd pair is made mutual.
//  5. Creates the match of every mutually liked pair.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "decisions", "profiles", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE profiles AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE messages AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('users', 'profiles', 'messages')")
	}

	logger.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	// --- Users + profiles ---
	now := time.Now()
	for i := 1; i <= 20; i++ {
		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: &hashed,
		}
		if i <= 2 {
			expires := now.Add(30 * 24 * time.Hour)
			user.IsPremium = true
			user.PremiumStartedAt = &now
			user.PremiumExpiresAt = &expires
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		profile := Profile{
			UserID:      user.ID,
			Pseudo:      user.Username,
			Photos:      []string{fmt.Sprintf("https://i.pravatar.cc/300?img=%d", i)},
			Description: "Looking for people to jam with",
			Instruments: []string{seedInstruments[r.Intn(len(seedInstruments))]},
			Styles:      []string{seedStyles[r.Intn(len(seedStyles))], seedStyles[r.Intn(len(seedStyles))]},
			MaxDistance: 50,
		}
		if i%7 != 0 {
			lat := seedCenter.Lat + (r.Float64()-0.5)*0.5
			lng := seedCenter.Lng + (r.Float64()-0.5)*0.5
			profile.Latitude, profile.Longitude = &lat, &lng
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	logger.Info("seeded users with profiles", "count", 20)

	// --- Swipes ---
	counter := 0
	for actorID := uint64(1); actorID <= 20; actorID++ {
		for j := 0; j < 8; j++ {
			recipientID := uint64(r.Intn(20) + 1)
			if actorID == recipientID {
				continue
			}

			liked := r.Intn(100) < 70
			if counter%3 == 0 {
				liked = true
				if err := seedMutual(db, actorID, recipientID); err != nil {
					return err
				}
			}

			decision := Decision{ActorID: actorID, RecipientID: recipientID, Liked: liked}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&decision).Error; err != nil {
				return fmt.Errorf("failed to seed decision: %w", err)
			}
			counter++
		}
	}
	logger.Info("seeded swipes", "count", counter)

	// random likes can be mutual by chance; every mutual pair gets its match
	n, err := seedMissingMatches(db)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("ensured matches for mutual likes", "pairs", n)
	}
	return nil
}

func seedMutual(db *gorm.DB, a, b uint64) error {
	for _, d := range []Decision{{ActorID: a, RecipientID: b, Liked: true}, {ActorID: b, RecipientID: a, Liked: true}} {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "recipient_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"liked", "updated_at"}),
		}).Create(&d).Error; err != nil {
			return fmt.Errorf("failed to seed mutual decision: %w", err)
		}
	}

	return seedMatch(db, a, b)
}

func seedMissingMatches(db *gorm.DB) (int, error) {
	var pairs []struct{ ActorID, RecipientID uint64 }
	err := db.Table("decisions AS d1").
		Select("d1.actor_id, d1.recipient_id").
		Joins("JOIN decisions AS d2 ON d2.actor_id = d1.recipient_id AND d2.recipient_id = d1.actor_id").
		Where("d1.liked = ? AND d2.liked = ? AND d1.actor_id < d1.recipient_id", true, true).
		Scan(&pairs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list mutual likes: %w", err)
	}
	for _, p := range pairs {
		if err := seedMatch(db, p.ActorID, p.RecipientID); err != nil {
			return 0, err
		}
	}
	return len(pairs), nil
}

func seedMatch(db *gorm.DB, a, b uint64) error {
	low, high := conversation.Order(a, b)
	now := time.Now()
	match := Match{
		ID:             uuid.NewString(),
		PairKey:        conversation.Key(a, b),
		UserLow:        low,
		UserHigh:       high,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&match).Error; err != nil {
		return fmt.Errorf("failed to seed match: %w", err)
	}
	return nil
}
