package parsers

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned for uploads that are not a readable PDF.
var ErrNotPDF = errors.New("resume must be a PDF file")

// ResumeInfo describes an accepted resume.
type ResumeInfo struct {
	MIME  string `json:"mime"`
	Pages int    `json:"pages"`
	Bytes int64  `json:"bytes"`
}

// PDFValidator checks that an uploaded resume really is a PDF. The file
// extension is not trusted; the content is sniffed and parsed.
type PDFValidator struct {
	MaxPages int
}

func NewPDFValidator() *PDFValidator {
	return &PDFValidator{MaxPages: 20}
}

// Validate sniffs and parses the file at path.
func (v *PDFValidator) Validate(path string) (*ResumeInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat resume: %w", err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrNotPDF)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect resume type: %w", err)
	}
	if !mtype.Is("application/pdf") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotPDF, mtype.String())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resume: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if v.MaxPages > 0 && ctx.PageCount > v.MaxPages {
		return nil, fmt.Errorf("resume has %d pages, limit is %d", ctx.PageCount, v.MaxPages)
	}

	return &ResumeInfo{
		MIME:  mtype.String(),
		Pages: ctx.PageCount,
		Bytes: st.Size(),
	}, nil
}
