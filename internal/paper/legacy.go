package paper

import "sort"

// Legacy storage kept questions flat, with an optional context_id pointing at
// a separate contexts table. BuildLegacySets synthesizes equivalent question
// sets from that shape so the rest of the pipeline never needs to know which
// storage generation produced the data: one composite set per context group,
// one atomic set per context-less question.
func BuildLegacySets(questions []Question, contexts []Context) []QuestionSet {
	byContext := make(map[string][]Question)
	for _, q := range questions {
		if q.ContextID == "" {
			continue
		}
		byContext[q.ContextID] = append(byContext[q.ContextID], q)
	}

	orderedContexts := make([]Context, len(contexts))
	copy(orderedContexts, contexts)
	sort.SliceStable(orderedContexts, func(i, j int) bool {
		return orderedContexts[i].DisplayOrder < orderedContexts[j].DisplayOrder
	})

	var sets []QuestionSet
	for _, ctx := range orderedContexts {
		group := byContext[ctx.ID]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].QuestionNumber < group[j].QuestionNumber
		})

		setID := "legacy-context-" + ctx.ID
		qs := make([]Question, len(group))
		for i, q := range group {
			q.SetID = setID
			if q.SequenceOrder == 0 {
				q.SequenceOrder = i + 1
			}
			qs[i] = q
		}
		sets = append(sets, QuestionSet{
			ID:              setID,
			PaperID:         ctx.PaperID,
			Section:         ctx.Section,
			SetType:         legacySetType(ctx.Section),
			ContentLayout:   legacyLayout(ctx.Section),
			ContextTitle:    ctx.Title,
			ContextBody:     ctx.Body,
			ContextImageURL: ctx.ImageURL,
			DisplayOrder:    ctx.DisplayOrder,
			QuestionCount:   len(qs),
			IsActive:        true,
			Questions:       qs,
		})
	}

	for _, q := range questions {
		if q.ContextID != "" {
			continue
		}
		setID := "legacy-atomic-" + q.ID
		q.SetID = setID
		if q.SequenceOrder == 0 {
			q.SequenceOrder = 1
		}
		sets = append(sets, QuestionSet{
			ID:            setID,
			PaperID:       q.PaperID,
			Section:       q.Section,
			SetType:       SetTypeAtomic,
			ContentLayout: "single_focus",
			DisplayOrder:  q.QuestionNumber,
			QuestionCount: 1,
			IsActive:      true,
			Questions:     []Question{q},
		})
	}

	return sets
}

func legacySetType(s Section) string {
	switch s {
	case SectionVARC:
		return SetTypeVARC
	case SectionDILR:
		return SetTypeDILR
	default:
		return SetTypeAtomic
	}
}

func legacyLayout(s Section) string {
	switch s {
	case SectionVARC:
		return "split_passage"
	case SectionDILR:
		return "split_chart"
	default:
		return "single_focus"
	}
}
