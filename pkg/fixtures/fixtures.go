// Package fixtures holds the mock chain data shown when live queries fail.
package fixtures

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cosmterm/pkg/models"

	"github.com/samber/lo"
)

//go:embed data/mock.json
var mockJSON []byte

// Data is the full mock set.
type Data struct {
	Overview   models.NetworkOverview `json:"overview"`
	Validators []models.Validator     `json:"validators"`
	Blocks     []models.BlockSummary  `json:"blocks"`
}

// Load decodes the embedded mock data. The overview is flagged Mock.
func Load() (Data, error) {
	var d Data
	if err := json.Unmarshal(mockJSON, &d); err != nil {
		return Data{}, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	d.Overview.Mock = true
	return d, nil
}

// MustLoad is Load for callers that treat broken fixtures as a build error.
func MustLoad() Data {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

// ValidatorsWithStatus returns the mock validators with the given status, all when
// status is empty.
func (d Data) ValidatorsWithStatus(status string) []models.Validator {
	if status == "" {
		return append([]models.Validator(nil), d.Validators...)
	}
	return lo.Filter(d.Validators, func(v models.Validator, _ int) bool {
		return v.Status == status
	})
}
