package neo_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/neo"
)

var _ = Describe("Outbound envelopes", func() {
	It("encodes create_chat exactly as the service expects", func() {
		data, err := neo.Encode(neo.NewCreateChat("chat-1", "77", "char-x", true))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"command": "create_chat",
			"payload": {
				"chat": {
					"chat_id": "chat-1",
					"creator_id": "77",
					"visibility": "VISIBILITY_PRIVATE",
					"character_id": "char-x",
					"type": "TYPE_ONE_ON_ONE"
				},
				"with_greeting": true
			}
		}`))
	})

	It("encodes create_and_generate_turn with an empty author and null image path", func() {
		data, err := neo.Encode(neo.NewGenerateTurn("char-x", "chat-1", "hey"))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"command": "create_and_generate_turn",
			"payload": {
				"character_id": "char-x",
				"turn": {
					"turn_key": {"chat_id": "chat-1"},
					"author": {},
					"candidates": [{"raw_content": "hey", "tti_image_rel_path": null}]
				}
			}
		}`))
	})

	It("round-trips the chat id through the generic map form", func() {
		data, err := neo.Encode(neo.NewGenerateTurn("char-x", "chat-9", "again"))
		Expect(err).NotTo(HaveOccurred())

		var parsed map[string]any
		Expect(json.Unmarshal(data, &parsed)).To(Succeed())
		payload := parsed["payload"].(map[string]any)
		turn := payload["turn"].(map[string]any)
		Expect(turn["turn_key"]).To(HaveKeyWithValue("chat_id", "chat-9"))
	})
})
