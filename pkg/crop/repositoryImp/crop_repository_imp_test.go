package repositoryImp

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acao/database"
	"acao/entities"
	"acao/pkg/plan/types"
)

func TestCropRepositoryReplacesStages(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "acao.db"))
	require.NoError(t, err)
	r := New(db)
	ctx := context.Background()

	maize := &entities.Crop{
		CropID: "maize", Name: "Maize", RiskClass: entities.RiskMedium,
		SoilTextures: []string{"loam", "silt"}, PHMin: 5.5, PHMax: 7.5,
		Stages: []entities.CropStage{
			{Ord: 2, Name: "mid", Days: 40, KcStart: 1.2, KcEnd: 1.2},
			{Ord: 1, Name: "initial", Days: 20, KcStart: 0.3, KcEnd: 0.3},
		},
	}
	require.NoError(t, r.Save(ctx, maize))
	assert.Len(t, maize.Stages, 2)

	got, err := r.FindByID(ctx, "maize")
	require.NoError(t, err)
	assert.Equal(t, []string{"loam", "silt"}, got.SoilTextures)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, "initial", got.Stages[0].Name)
	assert.Equal(t, "mid", got.Stages[1].Name)

	maize.Stages = []entities.CropStage{{Ord: 1, Name: "all", Days: 90, KcStart: 0.5, KcEnd: 1}}
	require.NoError(t, r.Save(ctx, maize))
	got, err = r.FindByID(ctx, "maize")
	require.NoError(t, err)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, 90, got.Stages[0].Days)

	require.NoError(t, r.Save(ctx, &entities.Crop{CropID: "beans", Name: "Beans"}))
	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "beans", all[0].CropID)
	assert.Empty(t, all[0].Stages)
	assert.Len(t, all[1].Stages, 1)

	_, err = r.FindByID(ctx, "cassava")
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.IsNotFound())
}
