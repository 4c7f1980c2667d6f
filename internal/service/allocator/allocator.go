package allocator

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/models"
)

// MaxValue is the largest number the fixed 5-digit suffix can carry. Once a
// counter passes it, allocation fails loudly instead of widening or wrapping.
const MaxValue = 99999

const DefaultOrg = "ORG"

// Allocator draws globally unique asset identifiers from per-category
// counters. The increment and the read-back happen as one UPDATE..RETURNING
// statement, so two callers can never see the same value no matter how many
// run concurrently.
type Allocator struct {
	Org string
}

func (a *Allocator) org() string {
	if a.Org != "" {
		return a.Org
	}
	return DefaultOrg
}

// Allocate must run inside the same transaction that persists the asset, so
// a failed insert rolls the draw back together with everything else. Gaps
// from committed-then-abandoned draws are acceptable; duplicates are not.
func (a *Allocator) Allocate(tx *gorm.DB, categoryID uint) (string, error) {
	var cat models.Category
	if err := tx.First(&cat, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.Newf(apperr.InvalidCategory, "category %d does not exist", categoryID)
		}
		return "", err
	}

	counter := models.Counter{Name: cat.CounterName}
	res := tx.Model(&counter).
		Clauses(clause.Returning{}).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", apperr.Newf(apperr.InvalidCategory, "category %q has no counter", cat.Name)
	}
	if counter.Value > MaxValue {
		return "", apperr.Newf(apperr.Internal, "identifier space exhausted for prefix %q", cat.Prefix)
	}

	return FormatID(a.org(), cat.Prefix, counter.Value), nil
}

func FormatID(org, prefix string, value int64) string {
	return fmt.Sprintf("%s-%s-%05d", org, strings.ToUpper(prefix), value)
}

// CounterName derives the counter key from a category prefix. The derivation
// is deterministic, so two categories created with the same normalized prefix
// would share one counter; the unique index on prefixes prevents that, and a
// counter left behind by a failed create is picked up by the retry.
func CounterName(prefix string) string {
	return "asset_seq_" + NormalizePrefix(prefix)
}

// NormalizePrefix lowercases and strips everything but letters and digits,
// keeping user-supplied text out of the counter keyspace.
func NormalizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(prefix) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
