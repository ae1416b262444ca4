package alarm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/qs3c/ytd_go_server/config"
)

// 告警级别
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notifier 安全告警通道：webhook 优先，邮件兜底。
// 全部 best-effort，失败只记日志，绝不阻塞调用方的正确性路径。
type Notifier struct {
	cfg    *config.AlarmConfig
	client *http.Client
}

func NewNotifier(cfg *config.AlarmConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

// Event 一次安全相关事件
type Event struct {
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	Username  string `json:"username,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Details   string `json:"details,omitempty"`
}

// Notify 异步发送告警
func (n *Notifier) Notify(event Event) {
	go n.send(event)
}

func (n *Notifier) send(event Event) {
	text := fmt.Sprintf("[%s] %s user=%s ip=%s %s",
		strings.ToUpper(event.Severity), event.AlertType, event.Username, event.IPAddress, event.Details)

	if n.cfg.WebhookURL != "" {
		payload, _ := json.Marshal(map[string]string{"text": text})
		resp, err := n.client.Post(n.cfg.WebhookURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Printf("alarm webhook failed: %v", err)
		} else {
			resp.Body.Close()
		}
	}

	if n.cfg.Email.AlertTo != "" && event.Severity == SeverityCritical {
		if err := n.sendMail(event.AlertType, text); err != nil {
			log.Printf("alarm mail failed: %v", err)
		}
	}
}

// sendMail 纯文本告警邮件
func (n *Notifier) sendMail(subject, body string) error {
	cfg := &n.cfg.Email

	headers := make(map[string]string)
	headers["From"] = cfg.From
	headers["To"] = cfg.AlertTo
	headers["Subject"] = "ALERT: " + subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/plain; charset=UTF-8"

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)

	return smtp.SendMail(addr, auth, cfg.From, []string{cfg.AlertTo}, []byte(msg.String()))
}
