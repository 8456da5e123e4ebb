package management

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ldn/pkg/models"
)

func TestValidateOrigin(t *testing.T) {
	score := 1.5

	tests := []struct {
		name    string
		mutate  func(o *models.OriginService)
		wantErr string
	}{
		{name: "valid", mutate: func(*models.OriginService) {}},
		{name: "no bounds", mutate: func(o *models.OriginService) { o.IPLowerBound, o.IPUpperBound = "", "" }},
		{name: "ipv6 range", mutate: func(o *models.OriginService) { o.IPLowerBound, o.IPUpperBound = "2001:db8::1", "2001:db8::ff" }},
		{name: "missing name", mutate: func(o *models.OriginService) { o.Name = " " }, wantErr: "name is required"},
		{name: "missing inbox", mutate: func(o *models.OriginService) { o.InboxURL = "" }, wantErr: "inbox_url is required"},
		{name: "relative inbox", mutate: func(o *models.OriginService) { o.InboxURL = "/inbox" }, wantErr: "absolute"},
		{name: "one bound", mutate: func(o *models.OriginService) { o.IPUpperBound = "" }, wantErr: "set together"},
		{name: "bad lower", mutate: func(o *models.OriginService) { o.IPLowerBound = "10.0.0" }, wantErr: "invalid ip_lower_bound"},
		{name: "inverted", mutate: func(o *models.OriginService) { o.IPLowerBound, o.IPUpperBound = "10.0.0.9", "10.0.0.1" }, wantErr: "must not be greater"},
		{name: "mixed family", mutate: func(o *models.OriginService) { o.IPUpperBound = "2001:db8::1" }, wantErr: "same address family"},
		{name: "score out of range", mutate: func(o *models.OriginService) { o.Score = &score }, wantErr: "score"},
		{name: "empty pattern", mutate: func(o *models.OriginService) {
			o.InboundPatterns = []models.NotifyPattern{{Pattern: ""}}
		}, wantErr: "inbound_patterns[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := &models.OriginService{
				Name:         "Review Service",
				InboxURL:     "https://review.example.com/inbox",
				IPLowerBound: "10.0.0.1",
				IPUpperBound: "10.0.0.255",
			}
			tt.mutate(origin)

			err := ValidateOrigin(origin)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
