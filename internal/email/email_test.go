package email

import (
	"strings"
	"testing"

	"github.com/evcraddock/house-market/internal/listing"
)

func ptr[T any](v T) *T { return &v }

func TestFormatInquiry(t *testing.T) {
	rec := &listing.Record{
		ID:              "abc",
		Type:            listing.TypeRent,
		Name:            "Sunny two bed flat",
		Bedrooms:        2,
		Bathrooms:       1,
		Offer:           true,
		RegularPrice:    1500,
		DiscountedPrice: ptr(int64(1250)),
		Location:        "1 Main St, Springfield",
	}

	body := FormatInquiry(rec, Sender{Name: "Ada", Email: "ada@example.com"}, "  Is it still available?  ", "http://localhost:8080/")

	for _, want := range []string{
		"Ada (ada@example.com) is asking about your listing",
		"Sunny two bed flat",
		"$1,250 / month",
		"discounted from $1,500",
		"2 beds",
		"1 bath",
		"1 Main St, Springfield",
		"http://localhost:8080/category/rent/abc",
		"\nIs it still available?\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestFormatInquirySale(t *testing.T) {
	rec := &listing.Record{ID: "x", Type: listing.TypeSale, Name: "Family home", Bedrooms: 4, Bathrooms: 2, RegularPrice: 325000}

	body := FormatInquiry(rec, Sender{Name: "Bo", Email: "bo@example.com"}, "Hi", "")

	if !strings.Contains(body, "$325,000 |") {
		t.Errorf("expected sale price without period:\n%s", body)
	}
	if strings.Contains(body, "discounted") || strings.Contains(body, "/category/") {
		t.Errorf("unexpected discount or link:\n%s", body)
	}
	if InquirySubject(rec) != "Re: Family home" {
		t.Errorf("subject = %q", InquirySubject(rec))
	}
}

func TestBuild(t *testing.T) {
	msg := string(Build("from@example.com", Message{
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "r@example.com",
		Subject: "Subject line",
		Body:    "Body text",
	}))

	for _, want := range []string{
		"From: from@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Reply-To: r@example.com\r\n",
		"Subject: Subject line\r\n",
		"\r\n\r\nBody text",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	noReply := string(Build("from@example.com", Message{To: []string{"a@example.com"}, Subject: "s"}))
	if strings.Contains(noReply, "Reply-To") {
		t.Error("unexpected Reply-To header")
	}
}

func TestSendRequiresConfig(t *testing.T) {
	if err := Send(SMTPConfig{}, Message{To: []string{"a@example.com"}}); err == nil {
		t.Error("expected error without smtp settings")
	}
	cfg := SMTPConfig{Host: "smtp.example.com", Port: "587", From: "f@example.com"}
	if err := Send(cfg, Message{}); err == nil {
		t.Error("expected error without recipients")
	}
}

func TestFormatWithCommas(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := FormatWithCommas(tt.in); got != tt.want {
			t.Errorf("FormatWithCommas(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSMTPConfigIsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"fully configured", SMTPConfig{Host: "smtp.example.com", Port: "587", From: "test@example.com"}, true},
		{"missing host", SMTPConfig{From: "test@example.com"}, false},
		{"missing from", SMTPConfig{Host: "smtp.example.com"}, false},
		{"empty", SMTPConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
