package list

// BreakBackLink points the back-reference of the tail of `head` at the tail itself.
// Tests of callers use it to observe how a corrupt list is reported.
func (a *Arena[V]) BreakBackLink(head Handle) error {
	if err := a.validate(head); err != nil {
		return err
	}
	if head.IsEmpty() {
		return ErrEmptyList
	}
	tail := a.tailOf(head.slot)
	a.at(tail).prev = tail
	return nil
}
