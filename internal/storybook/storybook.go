// Package storybook exports a finished run as a PDF keepsake.
package storybook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/tatianab/gamegen/internal/assets"
	"github.com/tatianab/gamegen/internal/models"
)

const (
	margin    = 54.0
	bodySize  = 11.0
	titleSize = 26.0
	headSize  = 15.0
	lineH     = 15.0
	portraitW = 140.0
)

var pngMagic = []byte("\x89PNG")

// Write renders run as a PDF. Art from g is included when it exists on disk;
// g may be nil.
func Write(w io.Writer, run *models.RunRecord, g *assets.Gallery) error {
	if run == nil || run.Story == nil {
		return errors.New("storybook: run has no story")
	}
	s := run.Story

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(s.Title, true)
	pdf.SetAuthor(run.Answers.Name, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	textW := pageW - 2*margin

	// Title page
	pdf.AddPage()
	if g != nil {
		image(pdf, g.Background(models.SceneTitle).Path, margin, margin, textW)
	}
	pdf.SetFont("Times", "B", titleSize)
	pdf.SetY(pdf.GetY() + 12)
	pdf.MultiCell(textW, titleSize+4, tr(s.Title), "", "C", false)
	pdf.SetFont("Times", "I", bodySize+1)
	pdf.MultiCell(textW, lineH, tr(fmt.Sprintf("A %s tale, %s", s.Genre, s.Tone)), "", "C", false)
	pdf.Ln(lineH)
	pdf.MultiCell(textW, lineH, tr(fmt.Sprintf("Starring %s the %s", run.Answers.Name, run.Answers.Occupation)), "", "C", false)

	// Prologue
	chapter(pdf, tr, textW, "Prologue", s.Prologue)
	cast(pdf, tr, textW, g, s.Player, s.Boss)
	dialogue(pdf, tr, textW, s.PrologueDialogue)

	// Battle
	heading(pdf, tr, "The Battle")
	pdf.SetFont("Courier", "", bodySize-1)
	if len(run.Transcript) == 0 {
		pdf.MultiCell(textW, lineH, tr("The fight went unrecorded."), "", "L", false)
	}
	for i, line := range run.Transcript {
		pdf.MultiCell(textW, lineH, tr(fmt.Sprintf("%3d. %s", i+1, line)), "", "L", false)
	}

	// Ending
	title := "Epilogue: Defeat"
	if run.BattleWon {
		title = "Epilogue: Victory"
	}
	chapter(pdf, tr, textW, title, s.Epilogue(run.BattleWon))
	dialogue(pdf, tr, textW, s.EpilogueDialogue(run.BattleWon))

	pdf.Ln(lineH * 2)
	pdf.SetFont("Times", "B", headSize)
	pdf.MultiCell(textW, lineH, "The End", "", "C", false)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("storybook: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("storybook: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile renders run into path.
func WriteFile(path string, run *models.RunRecord, g *assets.Gallery) error {
	var buf bytes.Buffer
	if err := Write(&buf, run, g); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.AddPage()
	pdf.SetFont("Times", "B", headSize)
	pdf.CellFormat(0, headSize+6, tr(text), "B", 1, "L", false, 0, "")
	pdf.Ln(lineH / 2)
}

func chapter(pdf *gofpdf.Fpdf, tr func(string) string, w float64, title, body string) {
	heading(pdf, tr, title)
	pdf.SetFont("Times", "", bodySize)
	for _, para := range strings.Split(strings.TrimSpace(body), "\n\n") {
		pdf.MultiCell(w, lineH, tr(strings.TrimSpace(para)), "", "J", false)
		pdf.Ln(lineH / 2)
	}
}

func cast(pdf *gofpdf.Fpdf, tr func(string) string, w float64, g *assets.Gallery, sheets ...models.CharacterSheet) {
	pdf.Ln(lineH)
	for _, c := range sheets {
		pdf.SetFont("Times", "B", bodySize+1)
		pdf.MultiCell(w, lineH, tr(c.Name), "", "L", false)
		if g != nil {
			image(pdf, g.Portrait(c.Name).Path, pdf.GetX(), pdf.GetY(), portraitW)
		}
		pdf.SetFont("Times", "I", bodySize)
		pdf.MultiCell(w, lineH, tr(c.Description), "", "L", false)
		pdf.Ln(lineH / 2)
	}
}

func dialogue(pdf *gofpdf.Fpdf, tr func(string) string, w float64, d models.Dialogue) {
	if len(d) == 0 {
		return
	}
	pdf.Ln(lineH)
	for _, l := range d {
		pdf.SetFont("Times", "B", bodySize)
		pdf.Write(lineH, tr(l.Speaker+": "))
		pdf.SetFont("Times", "", bodySize)
		pdf.Write(lineH, tr(l.Line))
		pdf.Ln(lineH)
	}
}

// image places a PNG if path points at one. Anything else is skipped.
func image(pdf *gofpdf.Fpdf, path string, x, y, w float64) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.HasPrefix(data, pngMagic) {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	info := pdf.RegisterImageOptionsReader(path, opts, bytes.NewReader(data))
	if pdf.Err() {
		// A broken image would poison the whole document.
		pdf.ClearError()
		return
	}
	h := w * info.Height() / info.Width()
	pdf.ImageOptions(path, x, y, w, h, false, opts, 0, "")
	pdf.SetY(y + h + 6)
}
