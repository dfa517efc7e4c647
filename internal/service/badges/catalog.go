package badges

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aimd54/elearn-gamification/internal/errs"
	"github.com/aimd54/elearn-gamification/internal/models"
)

// catalogFile is the on-disk badge catalog format.
type catalogFile struct {
	Badges []catalogEntry `yaml:"badges"`
}

type catalogEntry struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	IconURL        string `yaml:"icon_url"`
	BadgeType      string `yaml:"badge_type"`
	ConditionType  string `yaml:"condition_type"`
	ConditionValue int    `yaml:"condition_value"`
	Active         *bool  `yaml:"active"`
}

// validConditions mirrors the closed condition set in models.
var validConditions = map[models.BadgeCondition]bool{
	models.ConditionCourseComplete: true,
	models.ConditionQuizPass:       true,
	models.ConditionQuizPerfect:    true,
	models.ConditionLoginStreak:    true,
	models.ConditionQuizStreak:     true,
	models.ConditionPointsEarned:   true,
}

// SeedCatalog loads badge definitions from a YAML file and upserts them
// by name. Existing badges keep their earned-badge rows; only the
// definition fields are refreshed. Returns the number of badges seeded.
func (s *Service) SeedCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading badge catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing badge catalog %s: %w", path, err)
	}

	seeded := 0
	for i, entry := range file.Badges {
		if entry.Name == "" {
			return seeded, fmt.Errorf("badge catalog entry %d: missing name", i)
		}
		condition := models.BadgeCondition(entry.ConditionType)
		if !validConditions[condition] {
			return seeded, fmt.Errorf("badge %q: condition %q: %w", entry.Name, entry.ConditionType, errs.ErrUnknownCondition)
		}

		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		badge := &models.Badge{
			Name:           entry.Name,
			Description:    entry.Description,
			IconURL:        entry.IconURL,
			BadgeType:      entry.BadgeType,
			ConditionType:  condition,
			ConditionValue: entry.ConditionValue,
			IsActive:       active,
		}
		if err := s.badgeRepo.UpsertByName(badge); err != nil {
			return seeded, fmt.Errorf("seeding badge %q: %w", entry.Name, err)
		}
		seeded++
	}

	s.log.Info().Int("count", seeded).Str("path", path).Msg("Badge catalog seeded")
	return seeded, nil
}
