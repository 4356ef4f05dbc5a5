package segmentation

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput : aucune transaction, les quantiles ne sont pas définis.
	ErrEmptyInput = errors.New("aucune transaction")
	// ErrDataFormat : champ obligatoire absent ou invalide sur une ligne.
	ErrDataFormat = errors.New("format de données invalide")
)

// DataFormatError décrit la première ligne invalide rencontrée. Row est l'index dans la table d'entrée.
type DataFormatError struct {
	Row    int
	Field  string
	Reason string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("ligne %d: champ %s: %s", e.Row, e.Field, e.Reason)
}

func (e *DataFormatError) Unwrap() error { return ErrDataFormat }
