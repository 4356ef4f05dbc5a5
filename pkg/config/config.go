package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata" // noms IANA résolus même sans base tz sur la machine

	"cust-segmentation/pkg/segmentation"

	"gopkg.in/yaml.v3"
)

// File est le fichier de politique YAML (-config). Tout champ absent garde sa valeur par défaut.
type File struct {
	CutPoints       []float64   `yaml:"cut_points"`
	ChurnThresholds map[int]int `yaml:"churn_thresholds"`
	Ingest          Ingest      `yaml:"ingest"`
	Warehouse       Warehouse   `yaml:"warehouse"`
}

type Ingest struct {
	SkipRows    int      `yaml:"skip_rows"`
	DateLayouts []string `yaml:"date_layouts"`
	// Fuseau des dates des exports, qui n'en portent pas (nom IANA). Vide → fuseau de la machine.
	Location string `yaml:"location"`
}

// TimeLocation résout Location. "now" et les dates lues doivent partager ce fuseau.
func (i Ingest) TimeLocation() (*time.Location, error) {
	if i.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(i.Location)
}

// Warehouse nomme les tables MySQL lues et écrites.
type Warehouse struct {
	SourceTable      string `yaml:"source_table"`
	ProfilesTable    string `yaml:"profiles_table"`
	ChurnTable       string `yaml:"churn_table"`
	ChurnCountsTable string `yaml:"churn_counts_table"`
}

// DefaultDateLayouts couvre les formats de date des exports de ventes.
var DefaultDateLayouts = []string{
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"01/02/2006 03:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func Default() File {
	return File{
		CutPoints:       append([]float64(nil), segmentation.DefaultCutPoints...),
		ChurnThresholds: segmentation.DefaultChurnPolicy(),
		Ingest: Ingest{
			SkipRows:    1,
			DateLayouts: append([]string(nil), DefaultDateLayouts...),
		},
		Warehouse: Warehouse{
			SourceTable:      "sales_lines",
			ProfilesTable:    "customer_segments",
			ChurnTable:       "customer_churn",
			ChurnCountsTable: "churn_by_segment_month",
		},
	}
}

// Load lit le fichier YAML par-dessus les valeurs par défaut. path vide → défauts.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(raw, &cfg); err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse décode raw dans cfg (champs inconnus refusés) puis valide le résultat.
// Les seuils de churn sont fusionnés avec ceux déjà présents dans cfg.
func Parse(raw []byte, cfg *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}
	return cfg.Validate()
}

func (f File) Validate() error {
	if err := segmentation.ValidateCutPoints(f.CutPoints); err != nil {
		return fmt.Errorf("cut_points: %w", err)
	}
	if err := segmentation.ChurnPolicy(f.ChurnThresholds).Validate(); err != nil {
		return fmt.Errorf("churn_thresholds: %w", err)
	}
	if f.Ingest.SkipRows < 0 {
		return fmt.Errorf("ingest.skip_rows négatif")
	}
	if len(f.Ingest.DateLayouts) == 0 {
		return fmt.Errorf("ingest.date_layouts vide")
	}
	if _, err := f.Ingest.TimeLocation(); err != nil {
		return fmt.Errorf("ingest.location: %w", err)
	}
	return nil
}
