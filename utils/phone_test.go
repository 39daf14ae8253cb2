package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+55 (11) 98888-0000", "5511988880000"},
		{"5511988880000", "5511988880000"},
		{"55 11 9.8888.0000", "5511988880000"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPhoneFromJID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5511988880000@s.whatsapp.net", "5511988880000"},
		{"5511988880000@c.us", "5511988880000"},
		{"5511988880000", "5511988880000"},
	}
	for _, tc := range cases {
		if got := PhoneFromJID(tc.in); got != tc.want {
			t.Errorf("PhoneFromJID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppJID(t *testing.T) {
	if got := WhatsAppJID("+55 (11) 98888-0000"); got != "5511988880000@s.whatsapp.net" {
		t.Errorf("got %q", got)
	}
}
