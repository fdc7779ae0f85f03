package naive

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Berlin;12.3\nParis;-4.5\nBerlin;10.1\n", "{Berlin=10.1/11.2/12.3, Paris=-4.5/-4.5/-4.5}"},
		{"X;0.0\nX;0.0\nX;0.0\n", "{X=0.0/0.0/0.0}"},
		{"X;-0.1\nX;0.0\nX;0.0\nX;0.0", "{X=-0.1/0.0/0.0}"},
		{"A;-0.1\nA;-0.2\n", "{A=-0.2/-0.1/-0.1}"},
		{"", "{}"},
	}
	for _, tt := range tests {
		got, err := Run(strings.NewReader(tt.input))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRunErrors(t *testing.T) {
	for _, input := range []string{"Berlin\n", "Berlin;x\n", "a;b;c\n"} {
		_, err := Run(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}

func TestMean(t *testing.T) {
	m := &Measurements{Sum: big.NewRat(-45, 100), Count: 1}
	assert.Equal(t, "-0.4", m.Mean().FloatString(1))
	m = &Measurements{Sum: big.NewRat(45, 100), Count: 1}
	assert.Equal(t, "0.5", m.Mean().FloatString(1))
}
