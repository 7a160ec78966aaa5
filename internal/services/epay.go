package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// Способ оплаты, который принимает шлюз.
const EpayTypeAlipay = "alipay"

// EpayService строит подписанные платёжные ссылки и проверяет колбэки
// шлюза. Подпись — MD5 от канонической строки параметров с приклеенным
// секретом (без разделителя). Порядок полей фиксирован контрактом шлюза.
type EpayService struct {
	PID       string
	Secret    string
	SubmitURL string
	NotifyURL string
	ReturnURL string
	SiteName  string
}

func NewEpayService(pid, secret, submitURL, notifyURL, returnURL, siteName string) *EpayService {
	return &EpayService{
		PID:       pid,
		Secret:    secret,
		SubmitURL: submitURL,
		NotifyURL: notifyURL,
		ReturnURL: returnURL,
		SiteName:  siteName,
	}
}

// GenerateOrderNumber — ORDER + миллисекунды + 3 случайные цифры.
// Уникальность в пределах одной миллисекунды вероятностная, не гарантия.
func (s *EpayService) GenerateOrderNumber() string {
	return fmt.Sprintf("ORDER%d%03d", time.Now().UnixMilli(), rand.Intn(1000))
}

func md5hex(base string) string {
	sum := md5.Sum([]byte(base))
	return hex.EncodeToString(sum[:])
}

// signSubmit — подпись исходящей ссылки: поля в порядке
// money, name, notify_url, out_trade_no, pid, return_url, sitename, type.
func (s *EpayService) signSubmit(money, name, outTradeNo string) string {
	base := fmt.Sprintf(
		"money=%s&name=%s&notify_url=%s&out_trade_no=%s&pid=%s&return_url=%s&sitename=%s&type=%s",
		money, name, s.NotifyURL, outTradeNo, s.PID, s.ReturnURL, s.SiteName, EpayTypeAlipay,
	)
	return md5hex(base + s.Secret)
}

// BuildPaymentURL собирает полный URL на submit-эндпоинт шлюза.
func (s *EpayService) BuildPaymentURL(orderNumber, planName, amount string) string {
	sign := s.signSubmit(amount, planName, orderNumber)

	params := []struct{ k, v string }{
		{"pid", s.PID},
		{"type", EpayTypeAlipay},
		{"out_trade_no", orderNumber},
		{"notify_url", s.NotifyURL},
		{"return_url", s.ReturnURL},
		{"name", planName},
		{"money", amount},
		{"sitename", s.SiteName},
		{"sign", sign},
		{"sign_type", "MD5"},
	}

	var b strings.Builder
	b.WriteString(s.SubmitURL)
	b.WriteString("?")
	for i, p := range params {
		if i > 0 {
			b.WriteString("&")
		}
		b.WriteString(p.k)
		b.WriteString("=")
		b.WriteString(url.QueryEscape(p.v))
	}
	return b.String()
}

// VerifyCallback пересчитывает подпись колбэка: поля по алфавиту
// money, name, out_trade_no, pid, trade_no, trade_status, type + секрет.
// Колбэк с sign_type != MD5 отклоняется независимо от дайджеста.
func (s *EpayService) VerifyCallback(params map[string]string) bool {
	if params["sign_type"] != "MD5" {
		return false
	}
	base := fmt.Sprintf(
		"money=%s&name=%s&out_trade_no=%s&pid=%s&trade_no=%s&trade_status=%s&type=%s",
		params["money"], params["name"], params["out_trade_no"], params["pid"],
		params["trade_no"], params["trade_status"], params["type"],
	)
	expected := md5hex(base + s.Secret)
	return strings.EqualFold(expected, params["sign"])
}
