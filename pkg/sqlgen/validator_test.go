package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/models"
)

func testIntent(tables ...string) *models.QueryIntent {
	candidates := make([]models.CandidateTable, len(tables))
	for i, name := range tables {
		candidates[i] = models.CandidateTable{Name: name, Score: 1}
	}
	return &models.QueryIntent{
		RawQuestion:     "test",
		CandidateTables: candidates,
	}
}

func TestValidate_AcceptsBoundedSelect(t *testing.T) {
	intent := testIntent("products")

	stmt, bound, err := Validate("SELECT * FROM products LIMIT 10", intent, 100)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products LIMIT 10", stmt)
	assert.Equal(t, []string{"products"}, bound)
}

func TestValidate_StripsTrailingSemicolon(t *testing.T) {
	intent := testIntent("products")

	stmt, _, err := Validate("SELECT * FROM products LIMIT 10;", intent, 100)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products LIMIT 10", stmt)
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	intent := testIntent("products")

	for _, stmt := range []string{
		"DELETE FROM products",
		"UPDATE products SET name = 'x'",
		"DROP TABLE products",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"",
	} {
		_, _, err := Validate(stmt, intent, 100)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSQL, "statement %q must be rejected", stmt)
	}
}

func TestValidate_RejectsMultipleStatements(t *testing.T) {
	intent := testIntent("products")

	_, _, err := Validate("SELECT * FROM products LIMIT 1; DROP TABLE products", intent, 100)
	require.ErrorIs(t, err, apperrors.ErrInvalidSQL)
	assert.Contains(t, err.Error(), "multiple statements")
}

func TestValidate_SemicolonInsideLiteralIsFine(t *testing.T) {
	intent := testIntent("products")

	stmt, _, err := Validate("SELECT * FROM products WHERE name = 'a;b' LIMIT 5", intent, 100)
	require.NoError(t, err)
	assert.Contains(t, stmt, "'a;b'")
}

func TestValidate_ForbiddenKeywordInsideLiteralIsFine(t *testing.T) {
	intent := testIntent("products")

	_, _, err := Validate("SELECT * FROM products WHERE name = 'drop shipping' LIMIT 5", intent, 100)
	assert.NoError(t, err)
}

func TestValidate_RejectsEmbeddedMutation(t *testing.T) {
	intent := testIntent("products")

	_, _, err := Validate("SELECT * FROM products WHERE id IN (DELETE FROM products RETURNING id)", intent, 100)
	require.ErrorIs(t, err, apperrors.ErrInvalidSQL)
}

func TestValidate_RejectsTablesOutsideCandidateSet(t *testing.T) {
	intent := testIntent("products")

	_, _, err := Validate("SELECT * FROM platforms LIMIT 5", intent, 100)
	require.ErrorIs(t, err, apperrors.ErrInvalidSQL)
	assert.Contains(t, err.Error(), "platforms")

	_, _, err = Validate(
		"SELECT * FROM products JOIN secret_table ON products.id = secret_table.pid LIMIT 5",
		intent, 100)
	require.ErrorIs(t, err, apperrors.ErrInvalidSQL)
}

func TestValidate_RejectsAliasedTableHiddenInFromList(t *testing.T) {
	intent := testIntent("products")

	// The alias on the first item must not hide the second table.
	_, _, err := Validate(
		"SELECT * FROM products p, secret_table s WHERE p.id = s.pid LIMIT 5",
		intent, 100)
	require.ErrorIs(t, err, apperrors.ErrInvalidSQL)
	assert.Contains(t, err.Error(), "secret_table")
}

func TestValidate_CollectsAliasedFromList(t *testing.T) {
	intent := testIntent("products", "product_prices", "platforms")

	tests := []string{
		"SELECT p.name FROM products p, product_prices pp, platforms pl WHERE p.id = pp.product_id LIMIT 5",
		"SELECT p.name FROM products AS p, product_prices AS pp, platforms pl LIMIT 5",
		"SELECT p.name FROM products p , product_prices , platforms LIMIT 5",
	}
	for _, stmt := range tests {
		_, bound, err := Validate(stmt, intent, 100)
		require.NoError(t, err, stmt)
		assert.ElementsMatch(t, []string{"products", "product_prices", "platforms"}, bound, stmt)
	}
}

func TestValidate_CollectsJoinedTables(t *testing.T) {
	intent := testIntent("products", "product_prices", "platforms")

	stmt := "SELECT p.name, pp.current_price FROM products p " +
		"JOIN product_prices pp ON p.id = pp.product_id " +
		"JOIN platforms pl ON pp.platform_id = pl.id LIMIT 20"
	_, bound, err := Validate(stmt, intent, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"products", "product_prices", "platforms"}, bound)
}

func TestValidate_AppendsMissingLimit(t *testing.T) {
	intent := testIntent("products")

	stmt, _, err := Validate("SELECT * FROM products", intent, 50)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products LIMIT 50", stmt)
}

func TestValidate_ClampsOversizedLimit(t *testing.T) {
	intent := testIntent("products")

	stmt, _, err := Validate("SELECT * FROM products LIMIT 99999", intent, 50)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products LIMIT 50", stmt)
}

func TestValidate_LimitInsideLiteralDoesNotSatisfyBound(t *testing.T) {
	intent := testIntent("products")

	stmt, _, err := Validate("SELECT * FROM products WHERE name ILIKE 'limit 5%'", intent, 50)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products WHERE name ILIKE 'limit 5%' LIMIT 50", stmt)
}

func TestValidate_ClampNeverRewritesLiteralText(t *testing.T) {
	intent := testIntent("products")

	stmt, _, err := Validate("SELECT * FROM products WHERE name = 'limit 99999' LIMIT 10", intent, 50)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products WHERE name = 'limit 99999' LIMIT 10", stmt)
}

func TestValidate_SubqueryLimitDoesNotBoundOuterQuery(t *testing.T) {
	intent := testIntent("products", "product_prices")

	stmt, _, err := Validate(
		"SELECT * FROM products WHERE id IN (SELECT product_id FROM product_prices LIMIT 5)",
		intent, 50)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM products WHERE id IN (SELECT product_id FROM product_prices LIMIT 5) LIMIT 50",
		stmt)
}

func TestValidate_ClampsTopLevelLimitAfterSubquery(t *testing.T) {
	intent := testIntent("products", "product_prices")

	stmt, _, err := Validate(
		"SELECT * FROM products WHERE id IN (SELECT product_id FROM product_prices LIMIT 5) LIMIT 200",
		intent, 50)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM products WHERE id IN (SELECT product_id FROM product_prices LIMIT 5) LIMIT 50",
		stmt)
}

func TestValidate_RejectsInjectionInLiteral(t *testing.T) {
	intent := testIntent("products")

	_, _, err := Validate(
		"SELECT * FROM products WHERE name = '1'' OR ''1''=''1' LIMIT 5",
		intent, 100)
	assert.Error(t, err)
}

func TestValidate_SchemaQualifiedTableNames(t *testing.T) {
	intent := testIntent("products")

	_, bound, err := Validate("SELECT * FROM public.products LIMIT 5", intent, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"products"}, bound)
}
