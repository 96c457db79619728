package model

import "time"

// Favorite はユーザーがお気に入り登録した映画を表す。
// 所有者は常に1人で、所有者以外からは参照・削除できない。
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	MovieID   string    `json:"movieId"`
	Title     string    `json:"title"`
	Poster    string    `json:"poster,omitempty"`
	Year      string    `json:"year,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
