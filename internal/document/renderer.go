// Package document renders human-readable prescription documents. The clinic
// hands these out as printable HTML; rendering happens strictly after the
// posting has committed and its failure never unwinds the posting.
package document

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

type Item struct {
	Name     string
	Quantity int
	Dosage   string
	Duration string
}

// Prescription is the frozen snapshot a document is rendered from. It carries
// copies, not references: later edits to pets or users must not change an
// already-issued document.
type Prescription struct {
	PrescriptionID string
	PetName        string
	Species        string
	OwnerName      string
	VetName        string
	Instructions   string
	Items          []Item
	IssuedAt       time.Time
}

const prescriptionHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  body { font-family: Helvetica, sans-serif; padding: 40px; color: #333; max-width: 800px; margin: 0 auto; }
  .header { border-bottom: 3px solid #10b981; padding-bottom: 20px; margin-bottom: 30px; }
  .header h1 { margin: 0; color: #10b981; font-size: 28px; }
  .meta { color: #666; font-size: 14px; }
  .section { margin-bottom: 30px; }
  .section-title { font-size: 16px; font-weight: bold; color: #10b981; text-transform: uppercase; border-bottom: 1px solid #eee; padding-bottom: 5px; margin-bottom: 15px; }
  table { width: 100%; border-collapse: collapse; margin-top: 10px; }
  th { text-align: left; font-size: 12px; color: #888; padding: 10px; border-bottom: 1px solid #eee; }
  td { padding: 12px 10px; border-bottom: 1px solid #f5f5f5; font-size: 14px; }
  .instructions { background: #f9fafb; padding: 20px; border-radius: 8px; font-size: 14px; line-height: 1.6; }
  .footer { margin-top: 50px; text-align: center; color: #888; font-size: 12px; border-top: 1px solid #eee; padding-top: 20px; }
</style>
</head>
<body>
  <div class="header">
    <h1>PROVETCARE</h1>
    <p class="meta">Receta #{{.PrescriptionID}} &mdash; {{.IssuedAt.Format "02/01/2006"}}</p>
  </div>
  <div class="section">
    <div class="section-title">Paciente</div>
    <p><strong>{{.PetName}}</strong> ({{.Species}})</p>
    <p>Propietario: {{.OwnerName}}</p>
  </div>
  <div class="section">
    <div class="section-title">Medicamentos</div>
    <table>
      <tr><th>Medicamento</th><th>Cantidad</th><th>Dosis</th><th>Duraci&oacute;n</th></tr>
      {{range .Items}}
      <tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Dosage}}</td><td>{{.Duration}}</td></tr>
      {{end}}
    </table>
  </div>
  {{if .Instructions}}
  <div class="section">
    <div class="section-title">Indicaciones</div>
    <div class="instructions">{{.Instructions}}</div>
  </div>
  {{end}}
  <div class="footer">
    <p>Dr(a). {{.VetName}} &mdash; PROVETCARE Cl&iacute;nica Veterinaria</p>
  </div>
</body>
</html>`

var prescriptionTmpl = template.Must(template.New("prescription").Parse(prescriptionHTML))

// Renderer writes prescription documents into a directory on local disk.
type Renderer struct {
	dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Render writes the document and returns its path.
func (r *Renderer) Render(ctx context.Context, p Prescription) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}

	if p.IssuedAt.IsZero() {
		p.IssuedAt = time.Now()
	}

	path := filepath.Join(r.dir, fmt.Sprintf("prescription-%s.html", p.PrescriptionID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	defer f.Close()

	if err := prescriptionTmpl.Execute(f, p); err != nil {
		return "", fmt.Errorf("render prescription document: %w", err)
	}

	return path, nil
}
