package cel

var MatchExpressionExamples = map[string]string{
	"review_offer":      `activity_stream_type == "Offer" && notify_type == "coar-notify:ReviewAction"`,
	"endorsement_offer": `"coar-notify:EndorsementAction" in types`,
	"any_announce":      `activity_stream_type == "Announce"`,
	"from_origin":       `origin != "" && activity_stream_type == "Announce"`,
	"reply":             `in_reply_to != "" && activity_stream_type in ["Accept", "Reject", "TentativeAccept", "TentativeReject"]`,
	"object_prefix":     `object.startsWith("https://repo.example.org/items/")`,
	"payload_actor":     `has(payload.actor) && payload.actor.type == "Service"`,
	"case_insensitive":  `activity_stream_type.lowerAscii() == "announce"`,
	"first_attempt":     `attempts == 0`,
}
