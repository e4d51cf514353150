package model

import "time"

// Section はアクティビティIDから設問ごとの完了状況への対応。
// 設問の値は任意のJSON値で、真偽値として解釈される。
type Section map[string][]any

// Chapter はセクションの順序付き列。
type Chapter []Section

// RawCompletion はzyBooksが返すチャプター単位の完了データ。
type RawCompletion []Chapter

// GradeRecord は学生1人分のチャプター別スコア列。
// Gradesは入力チャプターと同じ順序・件数で、各値は0〜10。
type GradeRecord struct {
	ID        string
	StudentID string
	Grades    []float64
	SyncedAt  time.Time
}

// Student は成績同期の対象となる学生を表す。
type Student struct {
	ID        string
	ZybooksID string
}
