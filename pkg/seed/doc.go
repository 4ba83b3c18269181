// Package seed loads the initial role and menu catalog from YAML and applies it
// idempotently.
//
// A seed file looks like:
//
//	roles:
//	  - code: admin
//	    name: Administrator
//	    is_system: true
//	  - code: viewer
//	    name: Viewer
//	menus:
//	  - name: dashboard
//	    title: Dashboard
//	    path: /dashboard
//	  - name: system
//	    title: System
//	    children:
//	      - name: system-users
//	        title: Users
//	        menu_type: page
//	role_menus:
//	  viewer: [dashboard]
//
// Roles and menus are matched by code and name. Existing rows are never
// modified, and role bindings are only written for roles that have none yet.
package seed
