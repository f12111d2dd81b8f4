package mysql

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/kubex/caseload-identity/caseload"
)

type migration struct {
	key   string
	query string
}

func migQuery(query string) migration {
	return migration{
		key:   fmt.Sprintf("%x", sha1.Sum([]byte(query)))[0:8],
		query: query,
	}
}

func migrations() []migration {
	var queries []migration

	// Users
	queries = append(queries, migQuery("create table users ("+
		"`user`          varchar(128) not null,"+
		"`name`          varchar(128) default '' not null,"+
		"`email`         varchar(255) default '' not null,"+
		"`email_fold`    varchar(255) default '' not null,"+
		"`role`          varchar(20)  not null,"+
		"`title`         varchar(128) default '' not null,"+
		"`created_at`    bigint       default 0  not null,"+
		"`migrated_from` varchar(128) default '' not null,"+
		"`migrated_at`   bigint       default 0  not null,"+
		"PRIMARY KEY (`user`)"+
		");"))
	queries = append(queries, migQuery("create index users_email_fold on users(email_fold);"))

	// Dependent collections, reduced to the columns holding user keys
	for _, collection := range collections() {
		fields := caseload.ReferenceFields()[collection]
		cols := make([]string, 0, len(fields))
		for _, field := range fields {
			cols = append(cols, "`"+field+"` varchar(128) null,")
		}
		queries = append(queries, migQuery("create table `"+collection+"` ("+
			"`id` varchar(64) not null,"+
			strings.Join(cols, "")+
			"PRIMARY KEY (`id`)"+
			");"))
		for _, field := range fields {
			queries = append(queries, migQuery("create index "+collection+"_"+field+" on `"+collection+"`(`"+field+"`);"))
		}
	}

	return queries
}

// collections in a stable order, so migration keys never change between runs.
func collections() []string {
	var out []string
	seen := map[string]bool{}
	for _, ref := range caseload.References {
		if !seen[ref.Collection] {
			seen[ref.Collection] = true
			out = append(out, ref.Collection)
		}
	}
	return out
}

func knownField(collection, field string) bool {
	for _, f := range caseload.ReferenceFields()[collection] {
		if f == field {
			return true
		}
	}
	return false
}
