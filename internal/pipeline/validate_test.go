package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"market-pipeline/internal/model"
)

func TestValidateSpecs(t *testing.T) {
	tests := []struct {
		name    string
		specs   []model.DatasetSpec
		wantErr bool
	}{
		{name: "valid", specs: []model.DatasetSpec{{Name: "a", Source: "http://x"}, {Name: "b", Source: "/tmp/b.csv"}}},
		{name: "empty list", specs: nil, wantErr: true},
		{name: "duplicate names", specs: []model.DatasetSpec{{Name: "a", Source: "x"}, {Name: "a", Source: "y"}}, wantErr: true},
		{name: "missing name", specs: []model.DatasetSpec{{Source: "x"}}, wantErr: true},
		{name: "missing source", specs: []model.DatasetSpec{{Name: "a"}}, wantErr: true},
		{name: "path in name", specs: []model.DatasetSpec{{Name: "../a", Source: "x"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpecs(tt.specs)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "empty_dataset", KindOf(newStageError(model.StageAnalysis, "d", ErrEmptyDataset, false, nil, "x")))
	assert.Equal(t, "cancelled", KindOf(errors.Join(errors.New("stop"), context.Canceled)))
	assert.Equal(t, "internal", KindOf(errors.New("other")))
}
