// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package biofmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mpnnOutput = `>seed_0001, T=0.1, seed=111, num_res=4, num_ligand_res=4, use_ligand_context=True
MKLV
>seed_0001, id=1, T=0.1, seed=111, overall_confidence=0.4123, ligand_confidence=0.3800, seq_rec=0.5000
MKIV
>seed_0001, id=2, T=0.1, seed=111, overall_confidence=0.3900, ligand_confidence=0.3500, seq_rec=0.2500
AK
LV
`

func TestReadFasta(t *testing.T) {
	recs, err := ReadFasta(strings.NewReader(mpnnOutput))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "seed_0001", recs[0].Description())
	assert.Equal(t, "MKLV", recs[0].Sequence)
	assert.Equal(t, "AKLV", recs[2].Sequence)
}

func TestReadFasta_SequenceBeforeHeader(t *testing.T) {
	_, err := ReadFasta(strings.NewReader("MKLV\n>a\nAAA\n"))
	require.ErrorIs(t, err, ErrFasta)
}

func TestReadFasta_Empty(t *testing.T) {
	recs, err := ReadFasta(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestWriteFasta(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteFasta(&buf,
		FastaRecord{Header: "a", Sequence: "MK"},
		FastaRecord{Header: "b desc", Sequence: "LV"},
	))
	assert.Equal(t, ">a\nMK\n>b desc\nLV\n", buf.String())

	recs, err := ReadFasta(&buf)
	require.NoError(t, err)
	assert.Equal(t, "b", recs[1].Description())
}

func TestHeaderFields(t *testing.T) {
	recs, err := ReadFasta(strings.NewReader(mpnnOutput))
	require.NoError(t, err)

	f := HeaderFields(recs[1].Header)
	assert.Equal(t, "1", f["id"])
	assert.Equal(t, "0.1", f["T"])
	assert.NotContains(t, f, "seed_0001")

	v, err := FloatField(f, "overall_confidence")
	require.NoError(t, err)
	assert.InDelta(t, 0.4123, v, 1e-9)

	_, err = FloatField(f, "missing")
	require.ErrorIs(t, err, ErrHeaderField)

	_, err = FloatField(map[string]string{"T": "hot"}, "T")
	require.ErrorIs(t, err, ErrHeaderField)
}
