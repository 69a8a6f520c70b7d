package appeal

// Clone returns a deep copy so merge functions never alias session state.
func (a Appeal) Clone() Appeal {
	out := a
	if a.PenaltyIdentifier.PenaltyList != nil {
		list := *a.PenaltyIdentifier.PenaltyList
		list.Items = append([]Penalty(nil), list.Items...)
		out.PenaltyIdentifier.PenaltyList = &list
	}
	if a.Reasons.Illness != nil {
		illness := *a.Reasons.Illness
		if illness.ContinuedIllness != nil {
			continued := *illness.ContinuedIllness
			illness.ContinuedIllness = &continued
		}
		illness.Attachments = append([]Attachment(nil), illness.Attachments...)
		out.Reasons.Illness = &illness
	}
	if a.Reasons.Other != nil {
		other := *a.Reasons.Other
		other.Attachments = append([]Attachment(nil), other.Attachments...)
		out.Reasons.Other = &other
	}
	if a.CreatedBy != nil {
		createdBy := *a.CreatedBy
		out.CreatedBy = &createdBy
	}
	return out
}

// SetReason selects the reason type and keeps only the matching reason
// branch. Choosing the type already selected keeps its data.
func (a Appeal) SetReason(reasonType string) Appeal {
	out := a.Clone()
	out.CurrentReasonType = reasonType
	switch reasonType {
	case ReasonIllness:
		if out.Reasons.Illness == nil {
			out.Reasons.Illness = &Illness{}
		}
		out.Reasons.Other = nil
	case ReasonOther:
		if out.Reasons.Other == nil {
			out.Reasons.Other = &OtherReason{}
		}
		out.Reasons.Illness = nil
	}
	return out
}

// Attachments lists the evidence attached to the active reason.
func (a Appeal) Attachments() []Attachment {
	switch a.CurrentReasonType {
	case ReasonIllness:
		if a.Reasons.Illness != nil {
			return a.Reasons.Illness.Attachments
		}
	case ReasonOther:
		if a.Reasons.Other != nil {
			return a.Reasons.Other.Attachments
		}
	}
	return nil
}

// WithAttachment adds evidence to the active reason. An attachment whose ID
// is already present is replaced in place.
func (a Appeal) WithAttachment(attachment Attachment) Appeal {
	out := a.SetReason(a.CurrentReasonType)
	current := out.Attachments()
	replaced := false
	for i := range current {
		if current[i].ID == attachment.ID {
			current[i] = attachment
			replaced = true
		}
	}
	if !replaced {
		current = append(current, attachment)
	}
	out.setAttachments(current)
	return out
}

// WithoutAttachment removes evidence by ID from the active reason.
func (a Appeal) WithoutAttachment(id string) Appeal {
	out := a.SetReason(a.CurrentReasonType)
	var kept []Attachment
	for _, item := range out.Attachments() {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	out.setAttachments(kept)
	return out
}

func (a *Appeal) setAttachments(items []Attachment) {
	switch a.CurrentReasonType {
	case ReasonIllness:
		a.Reasons.Illness.Attachments = items
	case ReasonOther:
		a.Reasons.Other.Attachments = items
	}
}
