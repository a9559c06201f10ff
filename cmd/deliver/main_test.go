package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/inbox/internal/domain"
)

func fakeFiles(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return []byte(data), nil
	}
}

func TestBuildInput(t *testing.T) {
	opts := options{
		from:        "sender@example.com",
		to:          " alice@tempmail.local, ,bob@tempmail.local",
		subject:     "Hi",
		text:        "body",
		htmlFile:    "body.html",
		attachments: []string{"docs/report.pdf", "blob"},
		dkim:        "PASS",
		spf:         "SoftFail",
	}
	files := fakeFiles(map[string]string{
		"body.html":       "<p>body</p>",
		"docs/report.pdf": "%PDF",
		"blob":            "xx",
	})

	in, err := buildInput(opts, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@tempmail.local", "bob@tempmail.local"}, in.Recipients)
	assert.Equal(t, "alice@tempmail.local", in.To)
	assert.Equal(t, "Hi", *in.Subject)
	assert.Equal(t, "body", *in.BodyPlain)
	assert.Equal(t, "<p>body</p>", *in.BodyHTML)
	assert.Equal(t, domain.DKIMPass, in.DKIM)
	assert.Equal(t, domain.SPFSoftFail, in.SPF)
	assert.Equal(t, domain.DMARCAbsent, in.DMARC)

	require.Len(t, in.Attachments, 2)
	assert.Equal(t, "report.pdf", in.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", in.Attachments[0].ContentType)
	assert.Equal(t, "application/octet-stream", in.Attachments[1].ContentType)

	assert.Contains(t, string(in.Raw), "Subject: Hi\r\n")
	assert.Contains(t, in.RawHeaders, "To: alice@tempmail.local, bob@tempmail.local\n")
}

func TestBuildInput_RawFile(t *testing.T) {
	opts := options{to: "alice@tempmail.local", rawFile: "m.eml"}
	in, err := buildInput(opts, fakeFiles(map[string]string{"m.eml": "Subject: x\r\n\r\ny"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("Subject: x\r\n\r\ny"), in.Raw)
	assert.Nil(t, in.Subject)
	assert.Nil(t, in.BodyPlain)
}

func TestBuildInput_Errors(t *testing.T) {
	files := fakeFiles(nil)

	_, err := buildInput(options{to: "a@tempmail.local", dkim: "maybe"}, files)
	assert.Error(t, err)

	_, err = buildInput(options{to: " , "}, files)
	assert.Error(t, err)

	_, err = buildInput(options{to: "a@tempmail.local", attachments: []string{"missing"}}, files)
	assert.Error(t, err)
}
