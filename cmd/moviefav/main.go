// Command moviefav は映画検索・お気に入り管理APIサーバーを起動する。
//
// 使い方:
//
//	moviefav [serve]        APIサーバーを起動する（既定）
//	moviefav migrate        マイグレーションを適用する
//	moviefav migrate down   直近のマイグレーションを1件取り消す
//	moviefav healthcheck    /health を確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/moviefav/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "moviefav: %v\n", err)
		os.Exit(1)
	}
}
