package domain

// ChatRequestDetail is a join request enriched for display: applicant and
// handler nicknames plus chatroom name. Avatar fields hold object keys when
// read from the store and signed URLs once resolved by the service layer.
type ChatRequestDetail struct {
	ChatRequest

	ApplicantNickname string  `json:"applicant_nickname"`
	ApplicantAvatar   string  `json:"applicant_avatar"`
	HandlerNickname   *string `json:"handler_nickname"`
	ChatroomName      string  `json:"chatroom_name"`
	ChatroomAvatar    string  `json:"chatroom_avatar"`
}

// ChatSessionDetail is a session list entry with the chatroom's title and
// avatar, as shown to the entry's owner.
type ChatSessionDetail struct {
	ChatSession

	Title  string `json:"title"`
	Avatar string `json:"avatar"`
}

// MessageDetail is a chat record with the sender's nickname and avatar.
type MessageDetail struct {
	ChatRecord

	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}
