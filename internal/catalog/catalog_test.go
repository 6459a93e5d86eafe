package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"varchar(255)", "varchar"},
		{"character varying", "varchar"},
		{"character varying(80)", "varchar"},
		{"character", "char"},
		{"integer", "int4"},
		{"bigint", "int8"},
		{"smallint", "int2"},
		{"double precision", "float8"},
		{"real", "float4"},
		{"NUMERIC(10,2)", "numeric"},
		{"text", "text"},
		{"timestamp without time zone", "timestamp without time zone"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeType(tt.in))
		})
	}
}
