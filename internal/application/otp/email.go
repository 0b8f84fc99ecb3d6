package otp

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/go-budget-api/internal/infrastructure/smtp"
)

const subject = "SmartBudget Pro — Your OTP Code"

var htmlBody = template.Must(template.New("otp").Parse(`
<div style="font-family:Arial,sans-serif;max-width:400px;margin:auto;padding:30px;border-radius:12px;background:#f9f9f9;text-align:center">
  <h2 style="color:#6c63ff">SmartBudget Pro</h2>
  <p style="color:#555">Your OTP code:</p>
  <div style="font-size:42px;font-weight:bold;letter-spacing:8px;color:#6c63ff;padding:20px;background:#fff;border-radius:8px;margin:20px 0">{{.Code}}</div>
  <p style="color:#888;font-size:13px">Valid for {{.Minutes}} minutes only.<br>Do not share it with anyone.</p>
  <hr style="border:none;border-top:1px solid #eee;margin:20px 0">
  <p style="color:#aaa;font-size:11px">SmartBudget Pro — Personal Finance Tracker</p>
</div>`))

func otpMessage(to, code string, ttl time.Duration) (smtp.Message, error) {
	minutes := int(ttl / time.Minute)
	var html bytes.Buffer
	err := htmlBody.Execute(&html, struct {
		Code    string
		Minutes int
	}{code, minutes})
	if err != nil {
		return smtp.Message{}, err
	}
	return smtp.Message{
		To:      to,
		Subject: subject,
		Text:    fmt.Sprintf("Your OTP is: %s\nValid for %d minutes.", code, minutes),
		HTML:    html.String(),
	}, nil
}
