package app

import "strings"

// Command はプロセスの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れトークンの定期削除を行う。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの/healthを確認して終了する。
	// distrolessイメージにはcurlがないため、Dockerヘルスチェックはこれを使う。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数からサブコマンドを決める。大文字小文字は区別しない。
// 引数なし、または未知のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	if cmd, ok := knownCommands[strings.ToLower(strings.TrimSpace(args[0]))]; ok {
		return cmd
	}
	return CommandServe
}
