package services

import (
	"strings"
	"testing"
)

func testEpay() *EpayService {
	return NewEpayService(
		"1001",
		"testsecret",
		"https://pay.example.com/submit.php",
		"https://api.example.com/api/webhook/epay",
		"https://example.com/return",
		"NexusAI",
	)
}

func TestGenerateOrderNumber_Format(t *testing.T) {
	s := testEpay()

	n := s.GenerateOrderNumber()
	if !strings.HasPrefix(n, "ORDER") {
		t.Fatalf("номер должен начинаться с ORDER: %s", n)
	}
	// ORDER + 13 цифр миллисекунд + 3 случайные цифры
	if len(n) != len("ORDER")+13+3 {
		t.Fatalf("неожиданная длина номера: %s", n)
	}
	for _, c := range n[len("ORDER"):] {
		if c < '0' || c > '9' {
			t.Fatalf("после ORDER должны идти только цифры: %s", n)
		}
	}
}

func TestGenerateOrderNumber_Distinct(t *testing.T) {
	s := testEpay()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		seen[s.GenerateOrderNumber()] = true
	}
	// уникальность вероятностная: совпадение всех трёх практически исключено
	if len(seen) < 2 {
		t.Fatalf("номера заказов не различаются: %v", seen)
	}
}

func TestBuildPaymentURL(t *testing.T) {
	s := testEpay()

	u := s.BuildPaymentURL("ORDER1700000000000123", "Годовая подписка NexusAI", "99.00")

	if !strings.HasPrefix(u, s.SubmitURL+"?") {
		t.Fatalf("ссылка должна вести на submit-эндпоинт: %s", u)
	}
	for _, part := range []string{
		"pid=1001",
		"type=alipay",
		"out_trade_no=ORDER1700000000000123",
		"money=99.00",
		"sign_type=MD5",
		"sign=",
	} {
		if !strings.Contains(u, part) {
			t.Fatalf("в ссылке нет %q: %s", part, u)
		}
	}
}

func callbackParams(s *EpayService, orderNumber string) map[string]string {
	params := map[string]string{
		"money":        "99.00",
		"name":         "Годовая подписка NexusAI",
		"out_trade_no": orderNumber,
		"pid":          s.PID,
		"trade_no":     "2024010122001",
		"trade_status": "TRADE_SUCCESS",
		"type":         EpayTypeAlipay,
		"sign_type":    "MD5",
	}
	base := "money=" + params["money"] +
		"&name=" + params["name"] +
		"&out_trade_no=" + params["out_trade_no"] +
		"&pid=" + params["pid"] +
		"&trade_no=" + params["trade_no"] +
		"&trade_status=" + params["trade_status"] +
		"&type=" + params["type"]
	params["sign"] = md5hex(base + s.Secret)
	return params
}

func TestVerifyCallback_Valid(t *testing.T) {
	s := testEpay()
	params := callbackParams(s, "ORDER1700000000000123")

	if !s.VerifyCallback(params) {
		t.Fatal("корректная подпись должна проходить проверку")
	}
}

func TestVerifyCallback_UppercaseSign(t *testing.T) {
	s := testEpay()
	params := callbackParams(s, "ORDER1700000000000123")
	params["sign"] = strings.ToUpper(params["sign"])

	if !s.VerifyCallback(params) {
		t.Fatal("сравнение подписи должно быть регистронезависимым")
	}
}

func TestVerifyCallback_TamperedAmount(t *testing.T) {
	s := testEpay()
	params := callbackParams(s, "ORDER1700000000000123")
	params["money"] = "0.01"

	if s.VerifyCallback(params) {
		t.Fatal("подменённая сумма не должна проходить проверку")
	}
}

func TestVerifyCallback_WrongSignType(t *testing.T) {
	s := testEpay()
	params := callbackParams(s, "ORDER1700000000000123")
	params["sign_type"] = "RSA"

	if s.VerifyCallback(params) {
		t.Fatal("sign_type, отличный от MD5, отклоняется независимо от дайджеста")
	}
}

func TestVerifyCallback_WrongSecret(t *testing.T) {
	s := testEpay()
	params := callbackParams(s, "ORDER1700000000000123")

	other := testEpay()
	other.Secret = "othersecret"
	if other.VerifyCallback(params) {
		t.Fatal("подпись с чужим секретом не должна проходить")
	}
}
