package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poyrazK/zonekeeper/internal/adapters/memory"
	"github.com/poyrazK/zonekeeper/internal/core/domain"
)

func TestParseNSEC3Param(t *testing.T) {
	tests := []struct {
		content string
		want    domain.NSEC3Params
		optOut  bool
		salt    string
		wantErr bool
	}{
		{content: "1 0 1 -", want: domain.NSEC3Params{Algorithm: 1, Iterations: 1}, salt: "-"},
		{content: "1 1 10 aabbccdd", want: domain.NSEC3Params{Algorithm: 1, Flags: 1, Iterations: 10, Salt: []byte{0xaa, 0xbb, 0xcc, 0xdd}}, optOut: true, salt: "aabbccdd"},
		{content: "1 0 0 AB", want: domain.NSEC3Params{Algorithm: 1, Salt: []byte{0xab}}, salt: "ab"},
		{content: "1 0", wantErr: true},
		{content: "one two three four", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseNSEC3Param(tt.content)
		if tt.wantErr {
			assert.Error(t, err, tt.content)
			continue
		}
		require.NoError(t, err, tt.content)
		assert.Equal(t, tt.want, got, tt.content)
		assert.Equal(t, tt.optOut, got.OptOut(), tt.content)
		assert.Equal(t, tt.salt, got.SaltHex(), tt.content)
	}
}

func TestKeeperService_Posture(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()

	plain := st.AddZone("plain.test.", "")
	st.AddKey(plain.ID, domain.DNSSECKey{KeyType: "ZSK", Active: false})

	nsec := st.AddZone("nsec.test.", "")
	st.AddKey(nsec.ID, domain.DNSSECKey{KeyType: "ZSK", Active: false})
	st.AddKey(nsec.ID, domain.DNSSECKey{KeyType: "KSK", Active: true})

	narrow := st.AddZone("narrow.test.", "")
	st.AddKey(narrow.ID, domain.DNSSECKey{KeyType: "KSK", Active: true})
	st.SetMetadata(narrow.ID, domain.MetaNSEC3Param, "1 0 1000 -")
	st.SetMetadata(narrow.ID, domain.MetaNSEC3Narrow, "1")

	presigned := st.AddZone("presigned.test.", "")
	st.SetMetadata(presigned.ID, domain.MetaPresigned, "1")

	keeper := NewKeeperService(st, 100, quietLogger)

	tests := []struct {
		zone domain.Name
		want domain.DNSSECPosture
	}{
		{"plain.test.", domain.PostureUnsigned},
		{"nsec.test.", domain.PostureNSEC},
		{"narrow.test.", domain.PostureNSEC3},
		{"presigned.test.", domain.PosturePresigned},
	}
	for _, tt := range tests {
		p, err := LoadPosture(ctx, keeper, tt.zone)
		require.NoError(t, err, tt.zone)
		assert.Equal(t, tt.want, p.Posture(), tt.zone)
	}

	params, ok, err := keeper.GetNSEC3Params(ctx, "narrow.test.")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, params.Narrow)
	assert.Equal(t, uint16(100), params.Iterations, "iterations are clamped")

	_, ok, err = keeper.GetNSEC3Params(ctx, "nsec.test.")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeeperService_InvalidMetadata(t *testing.T) {
	st := memory.NewStore()
	z := st.AddZone("broken.test.", "")
	st.SetMetadata(z.ID, domain.MetaNSEC3Param, "not a param")
	keeper := NewKeeperService(st, 0, quietLogger)

	_, _, err := keeper.GetNSEC3Params(context.Background(), "broken.test.")
	assert.Error(t, err)
}

func TestKeeperService_UnknownZone(t *testing.T) {
	keeper := NewKeeperService(memory.NewStore(), 0, quietLogger)
	ctx := context.Background()

	_, err := keeper.IsPresigned(ctx, "missing.test.")
	assert.ErrorIs(t, err, domain.ErrZoneNotFound)
	_, err = keeper.IsSecured(ctx, "missing.test.")
	assert.ErrorIs(t, err, domain.ErrZoneNotFound)
	_, _, err = keeper.GetNSEC3Params(ctx, "missing.test.")
	assert.ErrorIs(t, err, domain.ErrZoneNotFound)
}
