package repository

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDoctorRepo_Mapping(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewDoctorRepo(db)

	ext := uuid.MustParse("55555555-5555-4555-8555-555555555555")
	require.NoError(t, db.Create(&model.Doctor{ID: 5, IdentifierCode: "C-5", SupabaseID: ptr(ext.String()), FirstName: "Ana", LastName1: "Ruiz"}).Error)
	require.NoError(t, db.Create(&model.Doctor{ID: 6, IdentifierCode: "C-6", FirstName: "Luis", LastName1: "Mora"}).Error)
	require.NoError(t, db.Create(&model.Doctor{ID: 7, IdentifierCode: "C-7", SupabaseID: ptr(uuid.NewString()), FirstName: "Eva", IsDeleted: true}).Error)

	got, ok, err := repo.ExternalByLegacy(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ext, got)

	_, ok, err = repo.ExternalByLegacy(ctx, 6)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = repo.ExternalByLegacy(ctx, 7)
	require.NoError(t, err)
	require.False(t, ok)

	legacy, ok, err := repo.LegacyByExternal(ctx, ext)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, legacy)

	d, err := repo.GetByUserID(ctx, identity.External(ext))
	require.NoError(t, err)
	require.Equal(t, "Ana Ruiz", d.DisplayName())

	list, err := repo.ListChatDoctors(ctx, identity.Aliases{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = repo.ListChatDoctors(ctx, identity.Aliases{Legacy: []uint64{5}})
	require.NoError(t, err)
	require.Empty(t, list)

	first, err := repo.FirstWithExternalID(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, first.ID)
}
