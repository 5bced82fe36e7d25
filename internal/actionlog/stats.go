package actionlog

// Stats 聚合了动作日志的统计信息，常用于仪表盘或健康检查。
type Stats struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	NoAction   int   `json:"no_action"`
	OldestAt   int64 `json:"oldest_at,omitempty"`
	NewestAt   int64 `json:"newest_at,omitempty"`
	LastFailed int64 `json:"last_failed_at,omitempty"`
}
