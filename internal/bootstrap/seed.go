package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/internal/infrastructure/directory"
	"github.com/docuflow/backend/pkg/auth"
)

// seedPassword is the demo credential for every seeded participant
const seedPassword = "password123"

// seedIDs are the demo participant ids. Their roles derive from the
// directory mapping: 1 admin, 2 uploader, 3 preparator, 4 reviewer.
var seedIDs = []string{"1", "2", "3", "4"}

// fallbackNames cover directory outages so seeding never blocks startup
var fallbackNames = map[string]string{
	"1": "Leanne Graham",
	"2": "Ervin Howell",
	"3": "Clementine Bauch",
	"4": "Patricia Lebsack",
}

// InitializeSeedData ensures the demo participant accounts exist so login
// works without the external directory. Existing accounts are left alone.
func InitializeSeedData(users ports.UserRepository, dir ports.UserDirectory) error {
	log.Println("🔧 Initializing seed participants...")

	ctx := context.Background()
	created := 0
	for _, id := range seedIDs {
		exists, err := users.ExistsByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check user %s: %w", id, err)
		}
		if exists {
			continue
		}

		name := fallbackNames[id]
		email := fmt.Sprintf("user%s@docuflow.local", id)
		if record, err := dir.GetUser(ctx, id); err == nil {
			name = record.Name
			if record.Email != "" {
				email = record.Email
			}
		} else {
			log.Printf("   ⚠️ Directory lookup failed for %s, using fallback name: %v", id, err)
		}

		hash, err := auth.HashPassword(seedPassword)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		user := &models.User{
			ID:           id,
			Name:         name,
			Email:        email,
			Role:         directory.RoleForID(id),
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", id, err)
		}
		created++
		log.Printf("   👤 Seeded %s (%s) as %s", user.Name, user.ID, user.Role)
	}

	if created > 0 {
		log.Printf("✅ Seeded %d participants (password: %s)", created, seedPassword)
	} else {
		log.Println("✅ Seed participants already present")
	}
	return nil
}
