package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecPublisherKeepsOrder(t *testing.T) {
	p := NewExecPublisher()
	for i := int64(1); i <= 5; i++ {
		p.Publish(Execution{Venue: "A", Qty: i})
	}
	assert.Equal(t, 5, p.Len())
	got := p.Drain()
	for i, e := range got {
		assert.Equal(t, int64(i+1), e.Qty)
	}
	assert.Empty(t, p.Drain())

	var nilPub *ExecPublisher
	nilPub.Publish(Execution{})
	assert.Nil(t, nilPub.Drain())
}
