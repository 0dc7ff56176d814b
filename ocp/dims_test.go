// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ocp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDims(t *testing.T) {

	d, err := NewDims(
		[]int{0, 4, 4, 4},
		[]int{2, 2, 2},
		[]int{2, 2, 2, 0},
		[]int{0, 4, 4, 4},
		nil)
	require.NoError(t, err)

	assert.Equal(t, 3, d.N)
	assert.Equal(t, []int{2, 2, 2, 0}, d.Nu)
	assert.Equal(t, []int{0, 0, 0, 0}, d.Ng)
	assert.Equal(t, 2+6+6+4, d.NumVars())
	assert.Equal(t, 12, d.NumEq())
	assert.Equal(t, 2*(2+6+6+4), d.NumIneq())
	assert.Equal(t, 6, d.Nc(1))
	assert.Contains(t, d.String(), "stage   3: nx=4 nu=0 nbu=0 nbx=4 ng=0")

	o, err := NewDims([]int{0, 4, 4, 4}, []int{2, 2, 2, 0}, []int{2, 2, 2, 0}, []int{0, 4, 4, 4}, []int{0, 0, 0, 0})
	require.NoError(t, err)
	assert.True(t, d.Equal(o))

	o.Ng[1] = 1
	assert.False(t, d.Equal(o))
	assert.False(t, d.Equal(nil))
}

func TestNewDimsInvalid(t *testing.T) {

	cases := []struct {
		name                 string
		nx, nu, nbu, nbx, ng []int
	}{
		{"horizon", []int{2}, nil, nil, nil, nil},
		{"nu size", []int{2, 2, 2}, []int{1}, nil, nil, nil},
		{"terminal input", []int{2, 2}, []int{1, 1}, nil, nil, nil},
		{"negative", []int{2, -1}, []int{1}, nil, nil, nil},
		{"input bounds", []int{2, 2}, []int{1}, []int{2, 0}, nil, nil},
		{"state bounds", []int{2, 2}, []int{1}, nil, []int{0, 3}, nil},
		{"empty stage", []int{0, 2}, []int{0}, nil, nil, nil},
		{"constraint size", []int{2, 2}, []int{1}, nil, nil, []int{0}},
	}

	for _, c := range cases {
		_, err := NewDims(c.nx, c.nu, c.nbu, c.nbx, c.ng)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("TestNewDimsInvalid: %s accepted (%v)", c.name, err)
		}
	}

	_, err := NewDims([]int{2, -1}, []int{1}, nil, nil, nil)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Stage)
}
