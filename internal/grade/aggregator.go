// Package grade はzyBooksの完了データからチャプター別スコアを算出し、
// 学生単位の成績同期を提供する。
package grade

import (
	"math"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// Aggregate は完了データをチャプター別の0〜10スコア列に変換する。
// 出力は入力チャプターと同じ順序・件数になる。設問が1つもないチャプターは0とする。
func Aggregate(studentID string, raw model.RawCompletion) model.GradeRecord {
	grades := make([]float64, 0, len(raw))
	for _, chapter := range raw {
		completed, total := countChapter(chapter)
		grades = append(grades, chapterScore(completed, total))
	}

	return model.GradeRecord{
		StudentID: studentID,
		Grades:    grades,
	}
}

// countChapter はチャプター内の全設問数と完了済み設問数を数える。
func countChapter(chapter model.Chapter) (completed, total int) {
	for _, section := range chapter {
		for _, questions := range section {
			for _, q := range questions {
				total++
				if isCompleted(q) {
					completed++
				}
			}
		}
	}
	return completed, total
}

// chapterScore は完了率をスコアに変換する。
func chapterScore(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	rawPercent := float64(completed) / float64(total) * 100
	return percentToScore(rawPercent)
}

// percentToScore はパーセントを整数に丸めてから10で割る。
// 先に10で割ってから丸めると結果が変わるため、この順序を維持すること。
// 例: 94.96 → 95 → 9.5
func percentToScore(percent float64) float64 {
	return math.Round(percent) / 10
}

// isCompleted は設問の値が「完了」を示すかを判定する。
// nil、false、0、NaN、空文字列は未完了。それ以外の値はすべて完了とみなす。
func isCompleted(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val != ""
	case interface{ Float64() (float64, error) }:
		f, err := val.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	default:
		return true
	}
}
