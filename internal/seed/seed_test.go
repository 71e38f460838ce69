package seed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/domain"
)

func TestUsers(t *testing.T) {
	users, err := Users()
	require.NoError(t, err)
	require.Len(t, users, 10)

	byState := map[domain.UserState]int{}
	byRole := map[domain.Role]int{}
	for _, u := range users {
		byState[u.Status().State()]++
		byRole[u.Role()]++
		require.Equal(t, "company.com", u.Email().Domain())
	}

	require.Equal(t, map[domain.UserState]int{
		domain.StateActive:    7,
		domain.StatePending:   1,
		domain.StateSuspended: 1,
		domain.StateInactive:  1,
	}, byState)
	require.Equal(t, 1, byRole[domain.RoleAdmin])
	require.Equal(t, 2, byRole[domain.RoleModerator])
	require.Equal(t, 7, byRole[domain.RoleUser])

	require.Equal(t, BaseDate, users[0].CreatedAt())
	_, loggedIn := users[3].LastLoginAt()
	require.False(t, loggedIn, "pending user has never logged in")
}

func TestProducts(t *testing.T) {
	products, err := Products()
	require.NoError(t, err)
	require.Len(t, products, 10)

	first := products[0]
	require.Equal(t, "Wireless Bluetooth Headphones", first.Name().String())
	require.Equal(t, "$199.99", first.Price().Format())
	require.Equal(t, 150, first.Inventory().Available())
	require.Equal(t, "electronics", first.Category().ID)
	require.Len(t, first.Images(), 3)
	require.Equal(t, "AudioTech Pro", first.Metadata()["brand"])

	for _, p := range products {
		avg := p.Rating().Average()
		require.GreaterOrEqual(t, avg, 4.0)
		require.LessOrEqual(t, avg, 4.8)
		require.GreaterOrEqual(t, p.Rating().Count(), 50)
	}
}
