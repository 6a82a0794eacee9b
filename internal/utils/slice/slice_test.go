package slice

import (
	"reflect"
	"testing"
)

func TestContains(t *testing.T) {
	arches := []string{"x86_64", "x86", "noarch"}
	if !Contains(arches, "noarch") || Contains(arches, "arm64") {
		t.Error("Contains on strings")
	}
	if !Contains([]int{1, 2, 3}, 2) || Contains(nil, 0) {
		t.Error("Contains on ints")
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"bash", "cygwin", "bash", "gcc-core", "cygwin"})
	if want := []string{"bash", "cygwin", "gcc-core"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Unique = %v, want %v", got, want)
	}
	if got := Unique[string](nil); len(got) != 0 {
		t.Errorf("Unique(nil) = %v", got)
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"a,b", "c"}, []string{"a", "b", "c"}},
		{[]string{" a , ,b,"}, []string{"a", "b"}},
		{[]string{""}, nil},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := SplitCSV(tt.in...); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCSV(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
