package repository

import (
	"testing"
)

// PostgresGradeRepoはGradeRepositoryインターフェースを満たすことを検証
func TestPostgresGradeRepo_ImplementsInterface(t *testing.T) {
	var _ GradeRepository = (*PostgresGradeRepo)(nil)
}

// NewPostgresGradeRepoが正しく初期化されることを検証
func TestNewPostgresGradeRepo_Initializes(t *testing.T) {
	repo := NewPostgresGradeRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// nilのスコア列は空配列として扱われることを検証
func TestGradesOrEmpty_NilBecomesEmpty(t *testing.T) {
	got := gradesOrEmpty(nil)
	if got == nil {
		t.Fatal("expected non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

// 既存のスコア列は順序を保ったまま返されることを検証
func TestGradesOrEmpty_KeepsOrder(t *testing.T) {
	in := []float64{8, 9.5, 0}
	got := gradesOrEmpty(in)
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], in[i])
		}
	}
}
