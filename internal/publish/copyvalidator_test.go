package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- CopyValidator Tests ---

func TestCopyValidatorRejectsForbiddenPhrase(t *testing.T) {
	v := NewCopyValidator(nil)
	item := spreadItem()
	text := TemplateEdge.Render(item) + "\nThis is a lock."

	reason := v.Validate(text, item)
	assert.Contains(t, reason, "forbidden phrase")
}

func TestCopyValidatorRejectsNumericDrift(t *testing.T) {
	v := NewCopyValidator(nil)

	t.Run("probability off by more than a tenth of a point", func(t *testing.T) {
		item := spreadItem()
		text := strings.Replace(TemplateEdge.Render(item), "58.3%", "58.5%", 1)
		assert.Contains(t, v.Validate(text, item), "numeric token")
	})

	t.Run("probability inside tolerance passes", func(t *testing.T) {
		item := spreadItem()
		text := strings.Replace(TemplateEdge.Render(item), "58.3%", "58.35%", 1)
		assert.Empty(t, v.Validate(text, item))
	})

	t.Run("line drift past five hundredths", func(t *testing.T) {
		item := spreadItem()
		text := strings.Replace(TemplateEdge.Render(item), "-5.8", "-5.9", 1)
		assert.Contains(t, v.Validate(text, item), "numeric token")
	})

	t.Run("odds have no tolerance at all", func(t *testing.T) {
		item := spreadItem()
		text := strings.Replace(TemplateEdge.Render(item), "worst -125", "worst -126", 1)
		assert.Contains(t, v.Validate(text, item), "numeric token")
	})

	t.Run("fabricated number is rejected", func(t *testing.T) {
		item := spreadItem()
		text := TemplateEdge.Render(item) + "\nUp 17.5 units this month"
		assert.Contains(t, v.Validate(text, item), "numeric token")
	})
}

func TestCopyValidatorRequiresTeamName(t *testing.T) {
	v := NewCopyValidator(nil)

	t.Run("spread copy must carry the canonical team", func(t *testing.T) {
		item := spreadItem()
		text := strings.ReplaceAll(TemplateEdge.Render(item), "Boston Celtics", "Celtics")
		assert.Contains(t, v.Validate(text, item), "team name")
	})

	t.Run("total copy does not name a team", func(t *testing.T) {
		item := totalItem()
		assert.Empty(t, v.Validate(TemplateEdge.Render(item), item))
	})
}

func TestCopyValidatorRequiredFields(t *testing.T) {
	v := NewCopyValidator(nil)

	t.Run("nil pick", func(t *testing.T) {
		item := spreadItem()
		text := TemplateEdge.Render(item)
		item.Decision.Pick = nil
		assert.Contains(t, v.Validate(text, item), "required fields")
	})

	t.Run("missing inputs hash", func(t *testing.T) {
		item := spreadItem()
		text := TemplateEdge.Render(item)
		item.Decision.Debug.InputsHash = ""
		assert.Contains(t, v.Validate(text, item), "required fields")
	})

	t.Run("missing selection id", func(t *testing.T) {
		item := spreadItem()
		text := TemplateEdge.Render(item)
		item.Decision.SelectionID = ""
		assert.Contains(t, v.Validate(text, item), "required fields")
	})
}

func TestCopyValidatorCustomPhraseList(t *testing.T) {
	v := NewCopyValidator([]string{"hammer"})
	item := spreadItem()

	assert.Contains(t, v.Validate(TemplateEdge.Render(item)+"\nHAMMER this", item), "forbidden phrase")
	assert.Empty(t, v.Validate(TemplateEdge.Render(item)+"\nThis one is a lock", item),
		"custom list replaces the defaults")
}
