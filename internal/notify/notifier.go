package notify

import "github.com/sirupsen/logrus"

// Channel 通知通道
type Channel string

const (
	ChannelInfo     Channel = "info"
	ChannelNormal   Channel = "normal"
	ChannelCritical Channel = "critical"
)

// Notifier 通知接口
// 核心视角下是 fire-and-forget：Send 不阻塞、不返回错误，投递失败由实现自己记日志
type Notifier interface {
	Send(channel Channel, message string)
}

// Log 仅写日志的通知实现（未配置 webhook 时的兜底，也供 price-watcher 使用）
type Log struct{}

var logNotify = logrus.WithField("component", "notify")

// Send 实现 Notifier
func (Log) Send(channel Channel, message string) {
	switch channel {
	case ChannelCritical:
		logNotify.Errorf("[%s] %s", channel, message)
	default:
		logNotify.Infof("[%s] %s", channel, message)
	}
}

// Nop 丢弃所有通知（测试用）
type Nop struct{}

// Send 实现 Notifier
func (Nop) Send(Channel, string) {}
