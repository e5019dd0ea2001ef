package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeMessage_JobType(t *testing.T) {
	withURL := ScrapeMessage{URL: "https://suumo.jp/ms/chuko/tokyo/nc_1", LineUserID: "U1"}
	assert.Equal(t, JobTypePropertyScrape, withURL.JobType())

	withoutURL := ScrapeMessage{LineUserID: "U1", CheckOnly: true}
	assert.Equal(t, JobTypeBatchCheck, withoutURL.JobType())
}

func TestScrapeMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     ScrapeMessage
		wantErr bool
	}{
		{
			name: "valid property scrape",
			msg:  ScrapeMessage{URL: "https://suumo.jp/ms/chuko/tokyo/nc_1", LineUserID: "Uabc"},
		},
		{
			name: "valid batch check",
			msg:  ScrapeMessage{LineUserID: "Uabc", CheckOnly: true},
		},
		{
			name:    "missing user id",
			msg:     ScrapeMessage{URL: "https://suumo.jp/ms/chuko/tokyo/nc_1"},
			wantErr: true,
		},
		{
			name:    "user id without U prefix",
			msg:     ScrapeMessage{URL: "https://suumo.jp/ms/chuko/tokyo/nc_1", LineUserID: "abc"},
			wantErr: true,
		},
		{
			name:    "no url and not check only",
			msg:     ScrapeMessage{LineUserID: "Uabc"},
			wantErr: true,
		},
		{
			name:    "unsupported host",
			msg:     ScrapeMessage{URL: "https://example.com/listing", LineUserID: "Uabc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDecodeScrapeMessage(t *testing.T) {
	msg, err := DecodeScrapeMessage([]byte(`{"url":"https://suumo.jp/ms/chuko/tokyo/nc_1","line_user_id":"U1","check_only":false}`))
	require.NoError(t, err)
	assert.Equal(t, "U1", msg.LineUserID)
	assert.Equal(t, JobTypePropertyScrape, msg.JobType())

	_, err = DecodeScrapeMessage([]byte(`not json`))
	require.Error(t, err)

	_, err = DecodeScrapeMessage([]byte(`{"line_user_id":"U1"}`))
	require.Error(t, err)
}
