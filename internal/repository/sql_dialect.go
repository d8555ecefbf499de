package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '\' 使用
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// isPostgres 判断连接是否为 PostgreSQL，其余按 sqlite 处理
func isPostgres(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	switch strings.ToLower(db.Dialector.Name()) {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// skipLockedClauses postgres 下批量领取跳过已被其他事务锁定的行，sqlite 写入串行无需加锁
func skipLockedClauses(db *gorm.DB) []clause.Expression {
	if !isPostgres(db) {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}}
}

// lowerEquals 大小写不敏感的等值条件
func lowerEquals(column string) string {
	return fmt.Sprintf("LOWER(%s) = LOWER(?)", column)
}

// keywordFilter 构建多列子串匹配条件，关键字中的通配符按字面匹配
func keywordFilter(postgres bool, keyword string, columns ...string) (string, []interface{}) {
	operator := "LIKE"
	if postgres {
		operator = "ILIKE"
	}
	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		column = strings.TrimSpace(column)
		if column == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(`%s %s ? ESCAPE '\'`, column, operator))
		args = append(args, pattern)
	}
	return strings.Join(parts, " OR "), args
}
