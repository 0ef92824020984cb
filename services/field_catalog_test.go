package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply/models"
)

const catalogPage = `<html><body><form>
	<label for="fn">Full   Name</label><input id="fn" name="applicant_name" type="text">
	<input type="hidden" name="csrf" value="x">
	<input name="website_confirm" style="display: none">
	<input type="email" name="email" placeholder="you@example.com">
	<textarea name="why_us" rows="8"></textarea>
	<textarea name="city"></textarea>
	<input type="file" name="resume" hidden>
	<label><input type="checkbox" name="terms"> I agree to the terms</label>
	<input type="radio" name="source" value="web">
	<input type="submit" value="Apply">
</form></body></html>`

func TestFieldCatalog_Scan(t *testing.T) {
	page := openStatic(t, "https://jobs.example.com/apply", catalogPage)

	fields, err := NewFieldCatalog(testLogger).Scan(page)
	require.NoError(t, err)
	require.Len(t, fields, 5)

	want := []struct {
		identity string
		kind     FieldKind
	}{
		{"applicant_name", KindText},
		{"email", KindText},
		{"city", KindText},
		{"resume", KindFile},
		{"terms", KindCheckbox},
	}
	for i, w := range want {
		assert.Equal(t, i, fields[i].Index)
		assert.Equal(t, w.identity, fields[i].Attrs.Identity())
		assert.Equal(t, w.kind, fields[i].Kind, w.identity)
	}

	assert.Equal(t, "Full Name", fields[0].Attrs.Get(models.AttrLabel))
	assert.Equal(t, "you@example.com", fields[1].Attrs.Get("placeholder"))
	assert.Equal(t, "I agree to the terms", fields[4].Attrs.Get(models.AttrLabel))
}

func TestFieldCatalog_EmptyPage(t *testing.T) {
	page := openStatic(t, "https://jobs.example.com/empty", `<html><body><p>Closed</p></body></html>`)

	fields, err := NewFieldCatalog(testLogger).Scan(page)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFieldCatalog_ClosedSession(t *testing.T) {
	page := openStatic(t, "https://jobs.example.com/apply", catalogPage)
	require.NoError(t, page.Close())

	_, err := NewFieldCatalog(testLogger).Scan(page)
	assert.ErrorIs(t, err, ErrSessionFault)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Full Name", normalizeText("  Full\n\t Name "))
	// NFKC folds fullwidth letters
	assert.Equal(t, "Email", normalizeText("Ｅｍａｉｌ"))

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(normalizeText(string(long))), maxDerivedText)
}
