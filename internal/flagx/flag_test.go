package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// the single-letter flags of the server
var serverFlags = []string{"-a", "-l", "-d", "-b", "-R", "-m", "-s", "-k", "-t", "-r"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "config flags stripped from server args",
			args:    []string{"-c", "gophauth.yaml", "-a", ":50051", "-b", "redis"},
			allowed: serverFlags,
			want:    []string{"-a", ":50051", "-b", "redis"},
		},
		{
			name:    "server args stripped from config args",
			args:    []string{"-a", ":50051", "-config=/etc/gophauth.yml", "-t", "30m"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=/etc/gophauth.yml"},
		},
		{
			name:    "equals form keeps value with dashes",
			args:    []string{"-d=postgres://u:p@db/auth?sslmode=disable", "-k=--raw--"},
			allowed: serverFlags,
			want:    []string{"-d=postgres://u:p@db/auth?sslmode=disable", "-k=--raw--"},
		},
		{
			name:    "missing value before next flag",
			args:    []string{"-s", "-l", ":8080"},
			allowed: serverFlags,
			want:    []string{"-s", "-l", ":8080"},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-r"},
			allowed: serverFlags,
			want:    []string{"-r"},
		},
		{
			name:    "test runner flags dropped",
			args:    []string{"-test.v", "-test.run=TestX", "positional"},
			allowed: serverFlags,
			want:    []string{},
		},
		{
			name:    "flag names are case sensitive",
			args:    []string{"-r", "1h", "-R", "localhost:6379"},
			allowed: []string{"-R"},
			want:    []string{"-R", "localhost:6379"},
		},
		{
			name:    "repeated flag preserved in order",
			args:    []string{"-b", "memory", "-b", "postgres"},
			allowed: serverFlags,
			want:    []string{"-b", "memory", "-b", "postgres"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short yaml", []string{"-c", "/etc/gophauth.yaml"}, "/etc/gophauth.yaml"},
		{"short equals", []string{"-c=conf.yml"}, "conf.yml"},
		{"long json", []string{"-config", "conf.json"}, "conf.json"},
		{"long equals", []string{"-config=conf.json"}, "conf.json"},
		{"mixed with server flags", []string{"-a", ":1", "-c", "x.yaml", "-t", "5m"}, "x.yaml"},
		{"last wins", []string{"-c", "1.json", "-config", "2.yaml"}, "2.yaml"},
		{"absent", []string{"-a", ":1"}, ""},
		{"no value", []string{"-c"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = append([]string{"gophauth"}, tt.args...)
			assert.Equal(t, tt.want, ConfigFileFlag())
		})
	}
}
