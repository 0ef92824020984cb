package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply/models"
)

func fillPage(t *testing.T, page PageSession, applicant models.Applicant) FillReport {
	t.Helper()
	fields, err := NewFieldCatalog(testLogger).Scan(page)
	require.NoError(t, err)
	matches := NewFieldMatcher(testLogger).Match(fields)
	return NewFormFillerService(testLogger).Fill(page, matches, applicant)
}

func attrOf(t *testing.T, page PageSession, selector, name string) string {
	t.Helper()
	els, err := page.Query(selector)
	require.NoError(t, err)
	require.Len(t, els, 1, selector)
	v, err := els[0].Attribute(name)
	require.NoError(t, err)
	return v
}

func outcomeFor(r FillReport, c models.FieldCategory) (models.FillOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Category == c {
			return o, true
		}
	}
	return models.FillOutcome{}, false
}

func TestFormFiller_FillsTextFields(t *testing.T) {
	page := openStatic(t, "https://jobs.example.com/apply", `<html><body><form>
		<label for="n">Full name</label><input id="n" name="full_name">
		<label for="e">Email</label><input id="e" name="email" type="email">
		<label for="w">Portfolio</label><input id="w" name="portfolio">
	</form></body></html>`)

	report := fillPage(t, page, models.Applicant{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	})

	assert.Equal(t, "Ada Lovelace", attrOf(t, page, "#n", "value"))
	assert.Equal(t, "ada@example.com", attrOf(t, page, "#e", "value"))
	assert.Empty(t, attrOf(t, page, "#w", "value"))

	assert.Equal(t, []string{
		"filled name: 'full_name' (matched via: name=full_name)",
		"filled email: 'email' (matched via: type=email)",
	}, report.Notes)

	_, attempted := outcomeFor(report, models.CategoryWebsite)
	assert.False(t, attempted, "unsupplied categories are not attempted")

	o, ok := outcomeFor(report, models.CategoryEmail)
	require.True(t, ok)
	assert.True(t, o.Filled)
	require.NotNil(t, o.MatchedVia)
	assert.Equal(t, "type=email", *o.MatchedVia)
}

func TestFormFiller_DisabledFieldIsNoted(t *testing.T) {
	page := openStatic(t, "https://jobs.example.com/apply", `<html><body><form>
		<input name="phone" type="tel" disabled>
	</form></body></html>`)

	report := fillPage(t, page, models.Applicant{Phone: "555-0100"})

	o, ok := outcomeFor(report, models.CategoryPhone)
	require.True(t, ok)
	assert.False(t, o.Filled)
	require.Len(t, report.Notes, 1)
	assert.Contains(t, report.Notes[0], "failed to fill phone:")
}

func TestFormFiller_RevealsHiddenResumeInput(t *testing.T) {
	resume := writeResume(t)
	page := openStatic(t, "https://jobs.example.com/apply", `<html><body><form>
		<label for="cv">Resume</label>
		<input id="cv" name="resume" type="file" style="display:none">
	</form></body></html>`)

	report := fillPage(t, page, models.Applicant{ResumePath: resume})

	o, ok := outcomeFor(report, models.CategoryResume)
	require.True(t, ok)
	assert.True(t, o.Filled)
	assert.Equal(t, resume, attrOf(t, page, "#cv", "data-uploaded"))
}

func TestFormFiller_LockedResumeUsesUploadTrigger(t *testing.T) {
	resume := writeResume(t)
	page := openStatic(t, "https://jobs.example.com/apply", `<html><body><form>
		<input id="cv" name="resume" type="file" hidden data-locked>
		<button type="button">Attach resume</button>
	</form></body></html>`)

	report := fillPage(t, page, models.Applicant{ResumePath: resume})

	o, ok := outcomeFor(report, models.CategoryResume)
	require.True(t, ok)
	assert.False(t, o.Filled, "the trigger does not unhide a locked input")
	assert.Contains(t, report.Notes[0], "failed to fill resume:")
	assert.Empty(t, attrOf(t, page, "#cv", "data-uploaded"))
}

func TestFormFiller_UploadTriggerNextToInputWins(t *testing.T) {
	resume := writeResume(t)
	page := openStatic(t, "https://jobs.example.com/apply", `<html><body><form>
		<div class="cover">
			<input id="cover" name="cover_letter" type="file" hidden data-locked>
			<button type="button" aria-controls="cover">Upload cover letter</button>
		</div>
		<div class="cv">
			<label for="cv">Resume</label>
			<input id="cv" name="resume" type="file" hidden data-locked>
			<button type="button" aria-controls="cv">Attach resume</button>
		</div>
	</form></body></html>`)

	report := fillPage(t, page, models.Applicant{ResumePath: resume})

	o, ok := outcomeFor(report, models.CategoryResume)
	require.True(t, ok)
	assert.True(t, o.Filled)
	assert.Equal(t, resume, attrOf(t, page, "#cv", "data-uploaded"))
	assert.Empty(t, attrOf(t, page, "[aria-controls=cover]", "aria-expanded"), "the far trigger is never clicked")
	assert.Equal(t, "true", attrOf(t, page, "[aria-controls=cv]", "aria-expanded"))
}

func TestFormFiller_Consent(t *testing.T) {
	const form = `<html><body><form>
		<label><input id="terms" type="checkbox" name="terms"> I agree to the terms</label>
		<label><input id="news" type="checkbox" name="newsletter" checked> Newsletter</label>
	</form></body></html>`

	t.Run("ticks unchecked box", func(t *testing.T) {
		page := openStatic(t, "https://jobs.example.com/apply", form)
		report := fillPage(t, page, models.Applicant{AutoConsent: true})

		o, ok := outcomeFor(report, models.CategoryConsent)
		require.True(t, ok)
		assert.True(t, o.Filled)
		els, err := page.Query("#terms")
		require.NoError(t, err)
		checked, err := els[0].IsChecked()
		require.NoError(t, err)
		assert.True(t, checked)
	})

	t.Run("leaves checked box alone", func(t *testing.T) {
		page := openStatic(t, "https://jobs.example.com/apply", `<html><body><form>
			<label><input id="terms" type="checkbox" name="terms" checked> I agree</label>
		</form></body></html>`)
		report := fillPage(t, page, models.Applicant{AutoConsent: true})

		o, ok := outcomeFor(report, models.CategoryConsent)
		require.True(t, ok)
		assert.True(t, o.Filled)
		els, err := page.Query("#terms")
		require.NoError(t, err)
		checked, err := els[0].IsChecked()
		require.NoError(t, err)
		assert.True(t, checked)
	})

	t.Run("not attempted without auto consent", func(t *testing.T) {
		page := openStatic(t, "https://jobs.example.com/apply", form)
		report := fillPage(t, page, models.Applicant{})

		_, attempted := outcomeFor(report, models.CategoryConsent)
		assert.False(t, attempted)
		assert.Empty(t, report.Notes)
	})
}
